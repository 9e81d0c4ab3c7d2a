package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/users"
)

const passwordEnv = "PROPOSTAS_USER_PASSWORD"

type userCreator interface {
	Create(ctx context.Context, actorID int64, req users.CreateUserRequest) (*users.User, error)
}

func createUserCmd() *cobra.Command {
	var req users.CreateUserRequest
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Long: "Create a user account. The password is read from " + passwordEnv +
			" or, with --password-stdin, from the first line of standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}
			req.Password = password

			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := db.New(ctx, e.cfg.PGDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			svc := users.NewService(users.NewRepository(pool), shared.NewAuditLogger(pool))
			return createUser(ctx, svc, req, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "login email")
	f.StringVar(&req.FullName, "name", "", "full name")
	f.StringVar(&req.Role, "role", shared.RoleVendor, "admin, manager or vendor")
	f.StringVar(&req.SalespersonCode, "code", "", "salesperson code used in quote numbers")
	f.StringVar(&req.Phone, "phone", "", "contact phone")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if pw := os.Getenv(passwordEnv); pw != "" {
			return pw, nil
		}
		return "", fmt.Errorf("password required: set %s or use --password-stdin", passwordEnv)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}

func createUser(ctx context.Context, svc userCreator, req users.CreateUserRequest, out io.Writer) error {
	req.SalespersonCode = strings.ToUpper(strings.TrimSpace(req.SalespersonCode))
	u, err := svc.Create(ctx, 0, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}
