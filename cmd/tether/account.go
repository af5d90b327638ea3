// Account management for servers running with auth.verify_credentials enabled.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dcrodman/tether/internal/auth"
	"github.com/dcrodman/tether/internal/core/data"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [username] [password]",
	Short: "Registers new accounts in the database",
	Args:  cobra.MaximumNArgs(2),
	Run:   AccountAddCommand,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Deletes accounts from the database",
	Args:  cobra.MaximumNArgs(1),
	Run:   AccountDeleteCommand,
}

func initDB() *gorm.DB {
	db, err := data.Open(loadConfig(), false)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return db
}

func AccountAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Close(db)

	var username, password string
	username, args = popArg(args, "Username")
	password, _ = popArg(args, "Password")

	account, err := findAccount(db, username)
	if err != nil {
		fmt.Println(err)
		return
	} else if account != nil {
		fmt.Printf("account '%s' already exists; skipping\n", username)
		return
	}

	account, err = auth.CreateAccount(db, username, password)
	if err != nil {
		fmt.Println("error creating account:", err)
		return
	}
	fmt.Printf("created account '%s' (id %d)\n", account.Username, account.ID)
}

func AccountDeleteCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Close(db)

	username, _ := popArg(args, "Username")
	account, err := findAccount(db, username)
	if err != nil {
		fmt.Println(err)
		return
	} else if account == nil {
		fmt.Printf("account '%s' does not exist\n", username)
		return
	}

	if err := data.DeleteAccount(db, account); err != nil {
		fmt.Println("error deleting account:", err)
		return
	}
	fmt.Printf("deleted account '%s'\n", username)
}

func popArg(args []string, prompt string) (string, []string) {
	if len(args) == 1 {
		return args[0], nil
	} else if len(args) > 1 {
		return args[0], args[1:]
	}

	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return scanner.Text(), args
}

func findAccount(db *gorm.DB, username string) (*data.Account, error) {
	account, err := data.FindAccountByUsername(db, auth.NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("error looking up account: %v", err)
	}
	return account, nil
}
