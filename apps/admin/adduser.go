package main

import (
	"context"
	"fmt"

	"github.com/trezcool/cronograma/core/user"
)

// addUser creates a user.User
func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.users.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %d created: %s <%s> (%s)\n", usr.ID, usr.Name, usr.Email, usr.Timezone)
	return nil
}
