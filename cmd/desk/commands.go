// cmd/desk/commands.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/circulation"
	"librarydesk/internal/ledger"
	"librarydesk/internal/membership"
)

const dateLayout = "2006-01-02"

func (d *desk) registerCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account (operator command)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := d.password(fmt.Sprintf("Password for new account %s: ", args[0]))
			if err != nil {
				return err
			}
			account, err := d.app.Membership.Register(cmd.Context(), args[0], password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s) id=%s\n", account.Username, account.Role, account.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(membership.RoleReader), "reader or librarian")
	return cmd
}

func (d *desk) addTitleCmd() *cobra.Command {
	var author, category string
	var copies int
	cmd := &cobra.Command{
		Use:   "add-title <name>",
		Short: "Catalog a new title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := d.loginAs(cmd.Context(), membership.RoleLibrarian)
			if err != nil {
				return err
			}
			title, err := d.app.Catalog.AddTitle(ctx, args[0], author, category, copies)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q id=%s copies=%d\n", title.Name, title.ID, title.TotalCopies)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "author name")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies")
	return cmd
}

func (d *desk) restockCmd() *cobra.Command {
	var copies int
	cmd := &cobra.Command{
		Use:   "restock <title-id>",
		Short: "Add copies to a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleID, err := parseID("title", args[0])
			if err != nil {
				return err
			}
			ctx, _, err := d.loginAs(cmd.Context(), membership.RoleLibrarian)
			if err != nil {
				return err
			}
			title, err := d.app.Circulation.Restock(ctx, titleID, copies)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q now has %d of %d copies available\n",
				title.Name, title.AvailableCopies, title.TotalCopies)
			return nil
		},
	}
	cmd.Flags().IntVar(&copies, "copies", 1, "copies to add")
	return cmd
}

func (d *desk) titlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "titles",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := newTable(cmd.OutOrStdout(), "ID", "TITLE", "AUTHOR", "CATEGORY", "AVAILABLE", "TOTAL")
			for title, err := range d.app.Catalog.ListTitles(cmd.Context()) {
				if err != nil {
					return err
				}
				t.row(title.ID, title.Name, title.AuthorName, title.CategoryName, title.AvailableCopies, title.TotalCopies)
			}
			return t.flush()
		},
	}
}

func (d *desk) borrowCmd() *cobra.Command {
	var account, today string
	var days int
	cmd := &cobra.Command{
		Use:   "borrow <title-id>",
		Short: "Borrow a copy of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleID, err := parseID("title", args[0])
			if err != nil {
				return err
			}
			day, err := d.day(today)
			if err != nil {
				return err
			}
			ctx, sess, err := d.login(cmd.Context())
			if err != nil {
				return err
			}

			accountID := sess.AccountID
			if account != "" {
				if accountID, err = parseID("account", account); err != nil {
					return err
				}
				if accountID != sess.AccountID {
					if err := sess.Require(membership.RoleLibrarian); err != nil {
						return err
					}
				}
			}

			loan, err := d.app.Circulation.Borrow(ctx, circulation.BorrowRequest{
				AccountID:      accountID,
				TitleID:        titleID,
				Today:          day,
				LoanPeriodDays: days,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loan %s due %s\n", loan.ID, loan.DueOn.Format(dateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "borrow on behalf of this account id (librarians)")
	cmd.Flags().StringVar(&today, "today", "", "issue date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 0, "loan period in days (default configured period)")
	return cmd
}

func (d *desk) returnCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			day, err := d.day(today)
			if err != nil {
				return err
			}
			ctx, sess, err := d.login(cmd.Context())
			if err != nil {
				return err
			}
			if !sess.IsLibrarian() {
				loan, err := d.app.Ledger.GetLoan(ctx, loanID)
				if err != nil {
					return err
				}
				if loan.AccountID != sess.AccountID {
					return apperr.ErrLoanNotFound
				}
			}

			loan, err := d.app.Circulation.ReturnLoan(ctx, loanID, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loan %s returned %s\n", loan.ID, loan.ReturnedOn.Format(dateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "return date YYYY-MM-DD (default today)")
	return cmd
}

func (d *desk) loansCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List open loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, sess, err := d.login(cmd.Context())
			if err != nil {
				return err
			}
			accountID := sess.AccountID
			if account != "" {
				if accountID, err = parseID("account", account); err != nil {
					return err
				}
				if accountID != sess.AccountID {
					if err := sess.Require(membership.RoleLibrarian); err != nil {
						return err
					}
				}
			}

			t := newTable(cmd.OutOrStdout(), "LOAN", "TITLE", "ISSUED", "DUE")
			for loan, err := range d.app.Ledger.OpenLoansFor(ctx, accountID) {
				if err != nil {
					return err
				}
				t.row(loan.ID, loan.TitleID, loan.IssuedOn.Format(dateLayout), loan.DueOn.Format(dateLayout))
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account id (librarians)")
	return cmd
}

func (d *desk) overdueCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Report overdue loans, earliest due first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := d.day(asOf)
			if err != nil {
				return err
			}
			ctx, _, err := d.loginAs(cmd.Context(), membership.RoleLibrarian)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), "DUE", "DAYS", "READER", "TITLE", "LOAN")
			for loan, err := range d.app.Circulation.OverdueReport(ctx, day) {
				if err != nil {
					return err
				}
				t.row(loan.DueOn.Format(dateLayout), loan.DaysOverdue(day), loan.Username, loan.TitleName, loan.ID)
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date YYYY-MM-DD (default today)")
	return cmd
}

func (d *desk) auditCmd() *cobra.Command {
	var account, action string
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, _, err := d.loginAs(cmd.Context(), membership.RoleLibrarian)
			if err != nil {
				return err
			}
			filter := audit.Filter{Action: action, Limit: limit}
			if account != "" {
				id, err := parseID("account", account)
				if err != nil {
					return err
				}
				filter.AccountID = audit.For(id)
			}

			entries, err := d.app.Audit.List(ctx, filter)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "WHEN", "ACCOUNT", "ACTION", "DESCRIPTION")
			for _, e := range entries {
				who := "system"
				if e.AccountID.Valid {
					who = e.AccountID.UUID.String()
				}
				t.row(e.ID, e.OccurredAt.UTC().Format(time.RFC3339), who, e.Action, e.Description)
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "only entries for this account id")
	cmd.Flags().StringVar(&action, "action", "", "only entries with this action")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}

func (d *desk) day(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ledger.Day(d.now()), nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("dates must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func parseID(kind, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument(fmt.Sprintf("invalid %s id %q", kind, value))
	}
	return id, nil
}
