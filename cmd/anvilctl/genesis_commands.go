package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anvilops/anvilctl/internal/genesis"
)

const (
	genesisFile  = "genesis.json"
	passwordFile = "password.txt"
)

func newGenesisCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "genesis",
		Short: "Generate genesis.json and password.txt for a geth-style dev chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenesisPrompts(bufio.NewReader(os.Stdin))
		},
	}
}

// runGenesisPrompts collects funded accounts interactively and writes the
// genesis document plus the account password file.
func runGenesisPrompts(in *bufio.Reader) error {
	alloc, err := askAlloc(in)
	if err != nil {
		return err
	}
	if len(alloc) == 0 {
		fmt.Println("no accounts were entered, nothing written")
		return nil
	}

	doc := genesis.NewDocument(alloc)
	if err := doc.Write(genesisFile); err != nil {
		return fmt.Errorf("write %s: %w", genesisFile, err)
	}
	fmt.Printf("%s written with %d account(s)\n", genesisFile, len(alloc))

	fmt.Println("\nWARNING: the password is stored in plain text in " + passwordFile + ".")
	fmt.Println("Use this for local development only, never with real accounts.")
	pw, err := readPassword("Password for the new account: ")
	if err != nil {
		return err
	}
	if err := genesis.WritePassword(passwordFile, pw); err != nil {
		return fmt.Errorf("write %s: %w", passwordFile, err)
	}
	fmt.Printf("%s written\n", passwordFile)
	return nil
}

// askAlloc prompts for address/balance pairs until a blank address.
func askAlloc(in *bufio.Reader) (map[string]string, error) {
	alloc := make(map[string]string)
	fmt.Println("Enter the funded accounts. Leave the address blank to finish.")
	for {
		fmt.Print("Ethereum address: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return alloc, nil // EOF finishes entry
		}
		addr := strings.TrimSpace(line)
		if addr == "" {
			return alloc, nil
		}
		checksummed, err := genesis.ChecksumAddress(addr)
		if err != nil {
			fmt.Printf("invalid address: %v\n", err)
			continue
		}

		fmt.Printf("Initial balance in ETH for %s: ", checksummed)
		line, err = in.ReadString('\n')
		if err != nil {
			return alloc, nil
		}
		wei, err := genesis.EthToWei(strings.TrimSpace(line))
		if err != nil {
			fmt.Printf("invalid balance: %v\n", err)
			continue
		}
		alloc[checksummed] = wei
	}
}

// readPassword reads without echo when stdin is a terminal, with a plain
// read fallback for piped input.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
