package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cliAdapter "invoicing-service/internal/adapters/cli"
	"invoicing-service/internal/app"
	"invoicing-service/internal/config"
	"invoicing-service/internal/core"
	"invoicing-service/internal/db"
	"invoicing-service/internal/logging"
	"invoicing-service/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// env is built once per invocation in the Before hook.
type env struct {
	cfg  config.Config
	log  *logrus.Logger
	pool *pgxpool.Pool
}

func main() {
	e := &env{}
	cliApp := &cli.App{
		Name:  "invoicectl",
		Usage: "administer the invoicing service",
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			e.cfg = cfg
			e.log = logging.New(cfg.LogLevel, cfg.LogFormat)
			e.pool, err = db.NewPool(c.Context, cfg.DatabaseURL)
			if err != nil {
				return cli.Exit(fmt.Sprintf("database: %v", err), 2)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if e.pool != nil {
				e.pool.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending schema migrations",
				Action: func(c *cli.Context) error {
					applied, err := migrations.Apply(c.Context, e.pool, e.log)
					if err != nil {
						return cli.Exit(fmt.Sprintf("migrate: %v", err), 1)
					}
					fmt.Fprintf(c.App.Writer, "Applied %d migration(s).\n", len(applied))
					return nil
				},
			},
			{
				Name:  "create-user",
				Usage: "register a user account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INVOICECTL_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					svc := app.NewAppService(e.pool, app.NewServices(e.pool, e.cfg.PhoneRegion))
					u, err := svc.Register(c.Context, app.CredentialsRequest{
						Username: c.String("username"),
						Password: c.String("password"),
					})
					if err != nil {
						return cli.Exit(fmt.Sprintf("create-user: %v", err), 1)
					}
					fmt.Fprintf(c.App.Writer, "Created user %q with id %d.\n", u.Username, u.UserID)
					return nil
				},
			},
			{
				Name:  "verify-totals",
				Usage: "report invoices whose stored total differs from the sum of their lines",
				Action: func(c *cli.Context) error {
					result, err := admin(e).AuditTotals(c.Context)
					if err != nil {
						return cli.Exit(fmt.Sprintf("verify-totals: %v", err), 2)
					}
					if err := cliAdapter.PrintAudit(c.App.Writer, result); err != nil {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
			{
				Name:  "reconcile",
				Usage: "recompute stored invoice totals from their lines",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "invoice", Usage: "reconcile only this invoice id"},
				},
				Action: func(c *cli.Context) error {
					var (
						result *app.ReconcileResult
						err    error
					)
					id := c.Int("invoice")
					if id > 0 {
						result, err = admin(e).Reconcile(c.Context, id)
					} else {
						result, err = admin(e).ReconcileAll(c.Context)
					}
					if err != nil {
						logging.LogError(e.log, "invoicectl", "reconcile", "", map[string]int{"invoice": id}, err)
						return cli.Exit(fmt.Sprintf("reconcile: %v", err), 1)
					}
					cliAdapter.PrintReconcile(c.App.Writer, id, result)
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "create a demo customer, two catalog items and a draft invoice for a user",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "user", Required: true, Usage: "owning user id"},
				},
				Action: func(c *cli.Context) error {
					inv, err := seed(c.Context, e, c.Int("user"))
					if err != nil {
						return cli.Exit(fmt.Sprintf("seed: %v", err), 1)
					}
					fmt.Fprintf(c.App.Writer, "Created invoice %d with total %s.\n", inv.ID, inv.Total)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "render an invoice to pdf or xlsx",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "user", Required: true, Usage: "owning user id"},
					&cli.IntFlag{Name: "invoice", Required: true},
					&cli.StringFlag{Name: "format", Value: "pdf", Usage: "pdf or xlsx"},
					&cli.StringFlag{Name: "out", Usage: "output path, - for stdout (default invoice-ID.FORMAT)"},
				},
				Action: func(c *cli.Context) error {
					doc, err := admin(e).ExportForUser(c.Context, app.ExportRequest{
						UserID:    c.Int("user"),
						InvoiceID: c.Int("invoice"),
						Format:    c.String("format"),
					})
					if err != nil {
						return cli.Exit(fmt.Sprintf("export: %v", err), 1)
					}
					return cliAdapter.WriteDocument(c.App.Writer, c.String("out"), doc)
				},
			},
		},
	}

	if err := cliApp.RunContext(context.Background(), os.Args); err != nil {
		var exitErr cli.ExitCoder
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func admin(e *env) app.AdminService {
	return app.NewAdminService(e.pool, app.NewServices(e.pool, e.cfg.PhoneRegion))
}

// seed writes demo data through the same services the HTTP API uses, so the stored
// total is produced by the reconciler like any other invoice.
func seed(ctx context.Context, e *env, userID int) (*core.InvoiceView, error) {
	svc := app.NewAppService(e.pool, app.NewServices(e.pool, e.cfg.PhoneRegion))
	user, err := svc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := core.Principal{UserID: user.UserID, Username: user.Username}

	email := "accounts@example.com"
	customer, err := svc.CreateCustomer(ctx, p, core.CustomerInput{Name: "Example Customer", Email: &email})
	if err != nil {
		return nil, err
	}
	var lines []core.LineInput
	for _, it := range []struct {
		name  string
		price string
		qty   int
	}{
		{"Consulting hour", "120.00", 8},
		{"Hosting (monthly)", "49.90", 1},
	} {
		price := decimal.RequireFromString(it.price)
		item, err := svc.CreateItem(ctx, p, core.CatalogItemInput{Name: it.name, UnitPrice: &price})
		if err != nil {
			return nil, err
		}
		qty := it.qty
		lines = append(lines, core.LineInput{ItemID: item.ID, Quantity: &qty})
	}

	res, err := svc.CreateInvoice(ctx, p, core.InvoiceInput{CustomerID: customer.ID, Items: lines})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"user_id": userID, "invoice_id": res.Invoice.ID}).Info("seeded demo invoice")
	return &res.Invoice, nil
}
