// gatehousectl manages the gatehouse user table from the command line.
// It opens the same backend the daemon is configured for, so accounts
// can be administered without the service running.
//
// Usage:
//
//	gatehousectl add -name NAME [-password PASSWORD] [-privileges LIST]
//	gatehousectl delete -name NAME
//	gatehousectl modify -name NAME [-password PASSWORD] [-privileges LIST]
//	           [-privileges-append LIST] [-privileges-revoke LIST]
//	gatehousectl list [NAME | PATTERN]
//
// Privilege lists are comma separated. List patterns may use '*' as a
// wildcard. When -password is required but not given, it is prompted for
// on the terminal without echo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/gatehouse/gatehouse/internal/app"
	"github.com/gatehouse/gatehouse/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := app.LoadConfig()
	st, err := app.OpenStore(cfg)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "add":
		err = runAdd(ctx, st, os.Args[2:])
	case "delete":
		err = runDelete(ctx, st, os.Args[2:])
	case "modify":
		err = runModify(ctx, st, os.Args[2:])
	case "list":
		err = runList(ctx, st, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runAdd(ctx context.Context, st store.UserStore, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "username to create (required)")
	password := fs.String("password", "", "password; prompted for when omitted")
	privileges := fs.String("privileges", "", "comma-separated privilege list")
	_ = fs.Parse(args)

	if *name == "" {
		return errors.New("add: -name is required")
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword(true)
		if err != nil {
			return err
		}
	}

	if err := st.AddUser(ctx, *name, pw, splitList(*privileges)); err != nil {
		return fmt.Errorf("add %s: %w", *name, err)
	}
	fmt.Printf("added user %s\n", store.NormalizeName(*name))
	return nil
}

func runDelete(ctx context.Context, st store.UserStore, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	name := fs.String("name", "", "username to delete (required)")
	_ = fs.Parse(args)

	if *name == "" {
		return errors.New("delete: -name is required")
	}

	if err := st.DeleteUser(ctx, *name); err != nil {
		return fmt.Errorf("delete %s: %w", *name, err)
	}
	fmt.Printf("deleted user %s\n", store.NormalizeName(*name))
	return nil
}

func runModify(ctx context.Context, st store.UserStore, args []string) error {
	fs := flag.NewFlagSet("modify", flag.ExitOnError)
	name := fs.String("name", "", "username to modify (required)")
	password := fs.String("password", "", "new password; leave empty to keep the current one")
	prompt := fs.Bool("prompt-password", false, "prompt for a new password without echo")
	privileges := fs.String("privileges", "", "replace the privilege list")
	appendPrivs := fs.String("privileges-append", "", "grant additional privileges")
	revokePrivs := fs.String("privileges-revoke", "", "revoke privileges")
	_ = fs.Parse(args)

	if *name == "" {
		return errors.New("modify: -name is required")
	}

	pw := *password
	if pw == "" && *prompt {
		var err error
		pw, err = promptPassword(true)
		if err != nil {
			return err
		}
	}
	if pw != "" {
		if err := st.ChangePassword(ctx, *name, pw); err != nil {
			return fmt.Errorf("modify %s: %w", *name, err)
		}
	}

	if *privileges != "" {
		if err := st.SetPrivileges(ctx, *name, splitList(*privileges)); err != nil {
			return fmt.Errorf("modify %s: %w", *name, err)
		}
	}
	if *appendPrivs != "" {
		if err := st.AddPrivileges(ctx, *name, splitList(*appendPrivs)); err != nil {
			return fmt.Errorf("modify %s: %w", *name, err)
		}
	}
	if *revokePrivs != "" {
		if err := st.RemovePrivileges(ctx, *name, splitList(*revokePrivs)); err != nil {
			return fmt.Errorf("modify %s: %w", *name, err)
		}
	}

	fmt.Printf("modified user %s\n", store.NormalizeName(*name))
	return nil
}

func runList(ctx context.Context, st store.UserStore, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	_ = fs.Parse(args)

	var name, pattern string
	if fs.NArg() > 0 {
		arg := fs.Arg(0)
		if strings.Contains(arg, "*") {
			pattern = arg
		} else {
			name = arg
		}
	}

	users, err := st.ListUsers(ctx, name, pattern)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLAST LOGIN\tIP\tPRIVILEGES")
	for _, u := range users {
		lastLogin := "never"
		if !u.LastLoginAt.IsZero() {
			lastLogin = u.LastLoginAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			u.Name, lastLogin, u.LastLoginIP, strings.Join(u.Privileges, ","))
	}
	return w.Flush()
}

// promptPassword reads a password from the terminal without echo. With
// confirm set it asks twice and requires both entries to match.
func promptPassword(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Retype password: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
	}

	return string(first), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gatehousectl <command> [flags]

commands:
  add     create a user
  delete  remove a user
  modify  change a user's password or privileges
  list    show users, optionally filtered by name or '*' pattern

The backend is selected by the same environment variables the daemon
reads (GATEHOUSE_BACKEND, GATEHOUSE_USER_FILE, GATEHOUSE_DATABASE_FILE).`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "gatehousectl:", err)
	os.Exit(1)
}
