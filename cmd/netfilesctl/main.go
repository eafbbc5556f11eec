// Command netfilesctl is a scriptable exerciser of the netfiles client
// library, generalizing the fixed open/write probe of the original
// test client into open, read and write subcommands, each of which closes
// what it opened.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snyderdan/netfiles"
)

var (
	addr    string
	modeStr string
	permStr string
	timeout time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "netfilesctl",
		Short: "Exercise a netfiles server from the command line",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:20000", "server address")
	root.PersistentFlags().StringVar(&modeStr, "mode", "unrestricted", "sharing mode: unrestricted, exclusive, transaction")
	root.PersistentFlags().DurationVar(&timeout, "dial-timeout", 5*time.Second, "connection timeout")

	root.AddCommand(newOpenCommand(), newReadCommand(), newWriteCommand())
	return root
}

func newOpenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a remote path and immediately close it, reporting the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			perm, err := parsePermission(permStr)
			if err != nil {
				return err
			}
			f, err := c.Open(args[0], perm)
			if err != nil {
				return err
			}
			fmt.Printf("opened %s\n", args[0])
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&permStr, "perm", "ro", "permission: ro, wo, rw")
	return cmd
}

func newReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Open a remote path for reading and print its contents to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			f, err := c.Open(args[0], netfiles.ReadOnly)
			if err != nil {
				return err
			}
			defer f.Close()

			_, err = io.Copy(os.Stdout, f)
			return err
		},
	}
	return cmd
}

func newWriteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Open a remote path for writing and send stdin as its new contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			f, err := c.Open(args[0], netfiles.WriteOnly)
			if err != nil {
				return err
			}
			defer f.Close()

			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			n, err := f.Write(data)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d bytes\n", n)
			return nil
		},
	}
	return cmd
}

func dial() (*netfiles.Client, error) {
	mode, err := parseSharingMode(modeStr)
	if err != nil {
		return nil, err
	}
	return netfiles.Dial(addr, mode, netfiles.WithDialTimeout(timeout))
}

func parseSharingMode(s string) (netfiles.SharingMode, error) {
	switch s {
	case "unrestricted":
		return netfiles.Unrestricted, nil
	case "exclusive":
		return netfiles.Exclusive, nil
	case "transaction":
		return netfiles.Transaction, nil
	default:
		return 0, fmt.Errorf("unknown sharing mode %q", s)
	}
}

func parsePermission(s string) (netfiles.Permission, error) {
	switch s {
	case "ro":
		return netfiles.ReadOnly, nil
	case "wo":
		return netfiles.WriteOnly, nil
	case "rw":
		return netfiles.ReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown permission %q", s)
	}
}
