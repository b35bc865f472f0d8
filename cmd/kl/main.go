package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kitchenlog/internal/app"
	"kitchenlog/internal/config"
	"kitchenlog/internal/derive"
	"kitchenlog/internal/domain"
	"kitchenlog/internal/engine"
	"kitchenlog/internal/metrics"
	"kitchenlog/internal/registration"
	"kitchenlog/internal/server"
	"kitchenlog/internal/view"
)

var rootCmd = &cobra.Command{
	Use:   "kl",
	Short: "Kitchenlog CLI",
	Long: `Kitchenlog keeps the record of installed kitchens and the incidents raised against them.
- Kitchen: one installation, identified by order number and LDAP, with its client, seller, installer and date.
- Incident: a problem on a kitchen with a cause, a status and a history of follow-up notes.
- Quality: a kitchen needs attention while any of its incidents is not COMPLETED.
Records are seeded from <workspace>/kitchens.yml (or --data) and kept in memory for the life of the process.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("KITCHENLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("data", "", "snapshot file to seed from (default <workspace>/kitchens.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func registerCommands() {
	rootCmd.AddCommand(kitchenCmd())
	rootCmd.AddCommand(incidentCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func kitchenCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "kitchen",
		Short: "Browse and register kitchens",
	}
	k.AddCommand(kitchenListCmd())
	k.AddCommand(kitchenShowCmd())
	k.AddCommand(kitchenRegisterCmd())
	return k
}

func kitchenListCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List kitchens with their quality state",
		Long:  "The search matches order number, client, seller, installer and LDAP once it has at least two characters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows := e.ListKitchens(ctx, search)
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				renderRows(rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "search text")
	return cmd
}

func renderRows(rows []derive.KitchenSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Order", "LDAP", "Client", "Seller", "Installer", "Date", "Quality"})
	for _, r := range rows {
		quality := "OK"
		if r.NeedsAttention {
			quality = fmt.Sprintf("%d open", r.Active)
		}
		if r.Incidents > 0 {
			quality = fmt.Sprintf("%s (%d)", quality, r.Incidents)
		}
		k := r.Kitchen
		tw.AppendRow(table.Row{k.ID, k.OrderNumber, k.LDAP, k.ClientName, k.Seller, k.Installer, k.InstallationDate, quality})
	}
	tw.Render()
}

func kitchenShowCmd() *cobra.Command {
	var expand string
	cmd := &cobra.Command{
		Use:   "show <kitchen-id>",
		Short: "Show a kitchen and its incidents, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.KitchenDetail(ctx, args[0], expand)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				renderDetail(d)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&expand, "expand", "", "incident id whose full history is shown")
	return cmd
}

func renderDetail(d view.Detail) {
	k := d.Kitchen
	fmt.Printf("Project %s (%s) for %s\n", k.OrderNumber, k.LDAP, k.ClientName)
	fmt.Printf("Seller: %s  Installer: %s  Installed: %s\n", k.Seller, k.Installer, k.InstallationDate)
	if len(d.Incidents) == 0 {
		fmt.Println("No incidents recorded.")
		return
	}
	for _, card := range d.Incidents {
		inc := card.Incident
		fmt.Printf("\n[%s] %s %s  %s\n", card.Badge, inc.Status, inc.Cause, inc.ID)
		fmt.Printf("  %s\n", inc.Description)
		if card.History.Empty {
			fmt.Println("  No follow-up notes yet.")
			continue
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Date", "Status", "Note"})
		for _, h := range card.History.Entries {
			tw.AppendRow(table.Row{derive.DateLabel(h.Date, time.Local), h.StatusAtTime, h.Text})
		}
		tw.Render()
		if card.History.Toggleable && !card.History.Expanded {
			fmt.Printf("  %d earlier note(s); use --expand %s\n", card.History.Earlier, inc.ID)
		}
	}
}

func kitchenRegisterCmd() *cobra.Command {
	var f registration.Fields
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an installed kitchen",
		Long:  "Seller and installer default to the first configured option and the date to today.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				form := e.NewForm()
				form.Fields.LDAP = f.LDAP
				form.Fields.OrderNumber = f.OrderNumber
				form.Fields.ClientName = f.ClientName
				if cmd.Flags().Changed("seller") {
					form.Fields.Seller = f.Seller
				}
				if cmd.Flags().Changed("installer") {
					form.Fields.Installer = f.Installer
				}
				if cmd.Flags().Changed("date") {
					form.Fields.InstallationDate = f.InstallationDate
				}
				k, err := e.Submit(ctx, form)
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	cmd.Flags().StringVar(&f.LDAP, "ldap", "", "LDAP code")
	cmd.Flags().StringVar(&f.OrderNumber, "order", "", "order number")
	cmd.Flags().StringVar(&f.ClientName, "client", "", "client name")
	cmd.Flags().StringVar(&f.Seller, "seller", "", "seller")
	cmd.Flags().StringVar(&f.Installer, "installer", "", "installer")
	cmd.Flags().StringVar(&f.InstallationDate, "date", "", "installation date (YYYY-MM-DD)")
	return cmd
}

func incidentCmd() *cobra.Command {
	inc := &cobra.Command{
		Use:   "incident",
		Short: "Open incidents and follow them up",
	}
	inc.AddCommand(incidentAddCmd())
	inc.AddCommand(incidentNoteCmd())
	return inc
}

func incidentAddCmd() *cobra.Command {
	var opts engine.IncidentCreateOptions
	var cause, status string
	cmd := &cobra.Command{
		Use:   "add <kitchen-id>",
		Short: "Open an incident on a kitchen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.KitchenID = args[0]
			opts.Cause = domain.IncidentCause(strings.ToUpper(cause))
			opts.Status = domain.TaskStatus(strings.ToUpper(status))
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inc, err := e.AddIncident(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(inc)
			})
		},
	}
	cmd.Flags().StringVar(&cause, "cause", string(domain.CauseOther), "incident cause")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what went wrong")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default first configured)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "first follow-up note")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func incidentNoteCmd() *cobra.Command {
	var text, status string
	cmd := &cobra.Command{
		Use:   "note <incident-id>",
		Short: "Append a follow-up note, optionally moving the incident to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inc, err := e.AppendNote(ctx, args[0], domain.TaskStatus(strings.ToUpper(status)), text)
				if err != nil {
					return err
				}
				return printJSONOrTable(inc)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "note text")
	cmd.Flags().StringVar(&status, "status", "", "status after this note (default unchanged)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Show or create the workspace option sets",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default kitchenlog.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and browser UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			m := metrics.New()
			e, err := app.Load(app.Options{
				Workspace: viper.GetString("workspace"),
				DataPath:  viper.GetString("data"),
				Logger:    logger,
				Metrics:   m,
			})
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			snap := e.Snapshot()
			logger.Info("serving kitchenlog",
				"addr", addr,
				"api", basePath,
				"ui", "/ui",
				"kitchens", len(snap.Kitchens),
				"incidents", len(snap.Incidents),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(viper.GetString("log-format"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, err := app.Load(app.Options{
		Workspace: viper.GetString("workspace"),
		DataPath:  viper.GetString("data"),
		Logger:    newLogger(),
	})
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
