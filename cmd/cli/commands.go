package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/postgres"
	"github.com/iho/bankledger/migrations"
)

func (c *cli) accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account operations",
	}

	var openReq dto.OpenAccountRequest
	var openKey string
	open := &cobra.Command{
		Use:   "open",
		Short: "Request a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dto.Validate(&openReq); err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, "/api/v1/accounts", nil, openReq, openKey)
		},
	}
	open.Flags().StringVar(&openReq.BankID, "bank-id", "", "Bank the account is opened at")
	open.Flags().StringVar(&openReq.HolderName, "holder", "", "Account holder name")
	open.Flags().StringVar(&openKey, "idempotency-key", "", "Idempotency key (generated when empty)")

	var byNumber bool
	get := &cobra.Command{
		Use:   "get <id|number>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/accounts/" + url.PathEscape(args[0])
			if byNumber {
				path = "/api/v1/accounts/number/" + url.PathEscape(args[0])
			}
			return c.call(cmd.Context(), http.MethodGet, path, nil, nil, "")
		},
	}
	get.Flags().BoolVar(&byNumber, "number", false, "Look the account up by account number")

	var status string
	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := pageQuery(limit, offset)
			setIf(q, "status", status)
			return c.call(cmd.Context(), http.MethodGet, "/api/v1/accounts", q, nil, "")
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, rejected)")
	addPageFlags(list, &limit, &offset)

	cmd.AddCommand(open, get, list, c.decideCmd("/api/v1/accounts/", "Approve or reject a pending account"))
	return cmd
}

func (c *cli) txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Transaction operations",
	}

	var submitReq dto.SubmitTransactionRequest
	var submitKey string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit a deposit or withdrawal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dto.Validate(&submitReq); err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, "/api/v1/transactions", nil, submitReq, submitKey)
		},
	}
	submit.Flags().StringVar(&submitReq.AccountID, "account-id", "", "Account id")
	submit.Flags().StringVar(&submitReq.Type, "type", "", "deposit or withdrawal")
	submit.Flags().StringVar(&submitReq.Amount, "amount", "", "Amount, e.g. 100.00")
	submit.Flags().StringVar(&submitKey, "idempotency-key", "", "Idempotency key (generated when empty)")

	var transferReq dto.SubmitTransferRequest
	var transferKey string
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Submit a transfer to another account number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dto.Validate(&transferReq); err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, "/api/v1/transfers", nil, transferReq, transferKey)
		},
	}
	transfer.Flags().StringVar(&transferReq.FromAccountID, "from", "", "Source account id")
	transfer.Flags().StringVar(&transferReq.ToAccountNumber, "to", "", "Destination account number")
	transfer.Flags().StringVar(&transferReq.Amount, "amount", "", "Amount, e.g. 25.50")
	transfer.Flags().StringVar(&transferKey, "idempotency-key", "", "Idempotency key (generated when empty)")

	var filter struct {
		account, status, kind, typ, from, to string
		limit, offset                        int
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := pageQuery(filter.limit, filter.offset)
			setIf(q, "account_id", filter.account)
			setIf(q, "status", filter.status)
			setIf(q, "kind", filter.kind)
			setIf(q, "type", filter.typ)
			setIf(q, "from", filter.from)
			setIf(q, "to", filter.to)
			return c.call(cmd.Context(), http.MethodGet, "/api/v1/transactions", q, nil, "")
		},
	}
	list.Flags().StringVar(&filter.account, "account-id", "", "Filter by account id")
	list.Flags().StringVar(&filter.status, "status", "", "Filter by status")
	list.Flags().StringVar(&filter.kind, "kind", "", "deposit, withdrawal, transfer_sent or transfer_received")
	list.Flags().StringVar(&filter.typ, "type", "", "Filter by type")
	list.Flags().StringVar(&filter.from, "since", "", "Created at or after (RFC3339)")
	list.Flags().StringVar(&filter.to, "until", "", "Created at or before (RFC3339)")
	addPageFlags(list, &filter.limit, &filter.offset)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), http.MethodGet, "/api/v1/transactions/"+url.PathEscape(args[0]), nil, nil, "")
		},
	}

	cmd.AddCommand(submit, transfer, list, get, c.decideCmd("/api/v1/transactions/", "Approve or reject a pending transaction"))
	return cmd
}

// decideCmd posts approve|reject to <prefix><id>/decision.
func (c *cli) decideCmd(prefix, short string) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:       "decide <id> <approve|reject>",
		Short:     short,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"approve", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.DecisionRequest{Decision: args[1]}
			if err := dto.Validate(&req); err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, prefix+url.PathEscape(args[0])+"/decision", nil, req, key)
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key (generated when empty)")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token operations",
	}

	var id domain.Identity
	var role, secret, issuer string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = c.v.GetString("jwt-secret")
			}
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or %s_JWT_SECRET)", envPrefix)
			}
			if id.UserID == "" {
				return fmt.Errorf("--user-id is required")
			}
			id.Role = domain.Role(role)
			if !id.Role.IsValid() {
				return fmt.Errorf("invalid role %q", role)
			}

			token, err := auth.NewJWTManager(secret, ttl, issuer).Generate(id)
			if err != nil {
				return err
			}
			return c.printJSON(map[string]any{
				"token":      token,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			})
		},
	}
	issue.Flags().StringVar(&id.UserID, "user-id", "", "Subject user id")
	issue.Flags().StringVar(&role, "as", string(domain.RoleCustomer), "Role: customer or manager")
	issue.Flags().StringVar(&id.BankID, "bank-id", "", "Bank a manager administers")
	issue.Flags().StringVar(&secret, "secret", "", "HMAC signing secret")
	issue.Flags().StringVar(&issuer, "issuer", "bankledger", "Token issuer")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	cmd.AddCommand(issue)
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	var databaseURL string
	run := func(down bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			dbURL := databaseURL
			if dbURL == "" {
				dbURL = c.v.GetString("database-url")
			}
			if dbURL == "" {
				return fmt.Errorf("a database URL is required (--database-url or %s_DATABASE_URL)", envPrefix)
			}
			m := postgres.NewMigrator(migrations.FS, zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger())
			if down {
				return m.Down(dbURL)
			}
			return m.Up(dbURL)
		}
	}

	up := &cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(false)}
	down := &cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run(true)}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(up, down)
	return cmd
}

func addPageFlags(cmd *cobra.Command, limit, offset *int) {
	cmd.Flags().IntVar(limit, "limit", 0, "Page size (server default when 0)")
	cmd.Flags().IntVar(offset, "offset", 0, "Rows to skip")
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
