package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/internal/bytesize"
	"github.com/marmos91/dittovfs/internal/cli/output"
	"github.com/marmos91/dittovfs/internal/cli/timeutil"
	"github.com/marmos91/dittovfs/pkg/apiclient"
)

var (
	remoteAddr   string
	remoteToken  string
	remoteOutput string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Work with the workspaces of a running server",
	Long: `Browse and modify the workspaces of a running DittoVFS server over its REST API.

The token defaults to the DVFS_TOKEN environment variable.

Examples:
  export DVFS_TOKEN=$(dvfs token alice -o raw)
  dvfs remote workspaces
  dvfs remote ls docs /reports
  dvfs remote put docs /reports ./q3.pdf
  dvfs remote get docs /reports/q3.pdf -f q3-copy.pdf
  dvfs remote search docs budget 2024`,
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "http://localhost:8080", "Server base URL")
	remoteCmd.PersistentFlags().StringVar(&remoteToken, "token", os.Getenv("DVFS_TOKEN"), "Bearer token")
	remoteCmd.PersistentFlags().StringVarP(&remoteOutput, "output", "o", "table", "Output format (table|json|yaml)")

	remoteCmd.AddCommand(remoteWorkspacesCmd)
	remoteCmd.AddCommand(remoteLsCmd)
	remoteCmd.AddCommand(remoteSearchCmd)
	remoteCmd.AddCommand(remoteGetCmd)
	remoteCmd.AddCommand(remotePutCmd)
	remoteCmd.AddCommand(remoteMkdirCmd)
	remoteCmd.AddCommand(remoteRmCmd)
	remoteCmd.AddCommand(remoteLockCmd)
	remoteCmd.AddCommand(remoteUnlockCmd)

	remoteGetCmd.Flags().StringVarP(&remoteGetFile, "file", "f", "", "Write to this file instead of stdout")
	remoteLockCmd.Flags().DurationVar(&remoteLockTimeout, "timeout", -1, "Lock timeout; 0 never expires (default: server default)")
	remoteRmCmd.Flags().StringVar(&remoteLockToken, "lock-token", "", "Lock token of a locked file")
	remotePutCmd.Flags().StringVar(&remoteLockToken, "lock-token", "", "Lock token of a locked file")
}

func newRemoteClient() *apiclient.Client {
	client := apiclient.New(remoteAddr).WithToken(remoteToken)
	// Transfers are bounded by the server's own timeouts.
	client.SetHTTPClient(&http.Client{})
	return client
}

// remoteItems renders API items as a table.
type remoteItems []apiclient.Item

// Headers implements output.TableRenderer.
func (l remoteItems) Headers() []string {
	return []string{"Name", "Kind", "Size", "Media Type", "Modified", "ID"}
}

// Rows implements output.TableRenderer.
func (l remoteItems) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, item := range l {
		name, size := item.Name, "-"
		if item.IsFolder() {
			name += "/"
		} else {
			size = bytesize.ByteSize(item.Size).String()
		}
		if item.Path == "/" {
			name = "/"
		}
		rows = append(rows, []string{name, item.Kind, size, item.MediaType, timeutil.FormatLocal(item.Modified), item.ID})
	}
	return rows
}

func printRemote(cmd *cobra.Command, table output.TableRenderer, data any) error {
	printer, err := output.PrinterFor(cmd.OutOrStdout(), remoteOutput)
	if err != nil {
		return err
	}
	if printer.Format() == output.FormatTable {
		return printer.Print(table)
	}
	return printer.Print(data)
}

var remoteWorkspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List the workspaces served",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaces, err := newRemoteClient().ListWorkspaces()
		if err != nil {
			return err
		}
		table := output.NewTableData("ID", "Mounted", "Root ID")
		for _, ws := range workspaces {
			table.AddRow(ws.ID, strconv.FormatBool(ws.Mounted), ws.RootID)
		}
		return printRemote(cmd, table, workspaces)
	},
}

var remoteLsCmd = &cobra.Command{
	Use:   "ls <workspace> [path]",
	Short: "List a folder",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		p := "/"
		if len(args) == 2 {
			p = args[1]
		}
		item, err := client.GetItemByPath(args[0], p)
		if err != nil {
			return err
		}
		if !item.IsFolder() {
			return printRemote(cmd, remoteItems{*item}, item)
		}
		page, err := client.ListChildren(args[0], item.ID, apiclient.ListOptions{})
		if err != nil {
			return err
		}
		return printRemote(cmd, remoteItems(page.Items), page)
	},
}

var remoteSearchCmd = &cobra.Command{
	Use:   "search <workspace> <term>...",
	Short: "Search items by name and property values",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newRemoteClient().Search(args[0], args[1:], 0)
		if err != nil {
			return err
		}
		return printRemote(cmd, remoteItems(result.Items), result)
	},
}

var remoteGetFile string

var remoteGetCmd = &cobra.Command{
	Use:   "get <workspace> <path>",
	Short: "Download a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		item, err := client.GetItemByPath(args[0], args[1])
		if err != nil {
			return err
		}
		rc, err := client.Download(args[0], item.ID)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()

		var w io.Writer = cmd.OutOrStdout()
		if remoteGetFile != "" {
			f, err := os.Create(remoteGetFile)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		_, err = io.Copy(w, rc)
		return err
	},
}

var remoteLockToken string

var remotePutCmd = &cobra.Command{
	Use:   "put <workspace> <folder> <local-file>",
	Short: "Upload a local file into a folder, replacing an existing file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		folder, err := client.GetItemByPath(args[0], args[1])
		if err != nil {
			return err
		}
		f, err := os.Open(args[2])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		item, created, err := client.UploadFile(args[0], folder.ID, filepath.Base(args[2]), "", remoteLockToken, f)
		if err != nil {
			return err
		}
		verb := "Updated"
		if created {
			verb = "Created"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, item.Path, bytesize.ByteSize(item.Size))
		return nil
	},
}

var remoteMkdirCmd = &cobra.Command{
	Use:   "mkdir <workspace> <path>",
	Short: "Create a folder and any missing parents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := newRemoteClient().CreateFolder(args[0], apiclient.RootID, strings.Trim(path.Clean("/"+args[1]), "/"))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", item.Path)
		return nil
	},
}

var remoteRmCmd = &cobra.Command{
	Use:   "rm <workspace> <path>",
	Short: "Delete a file or a folder with its contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		item, err := client.GetItemByPath(args[0], args[1])
		if err != nil {
			return err
		}
		if err := client.Delete(args[0], item.ID, remoteLockToken); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", item.Path)
		return nil
	},
}

var remoteLockTimeout time.Duration

var remoteLockCmd = &cobra.Command{
	Use:   "lock <workspace> <path>",
	Short: "Lock a file and print the lock token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		item, err := client.GetItemByPath(args[0], args[1])
		if err != nil {
			return err
		}
		var timeout *time.Duration
		if remoteLockTimeout >= 0 {
			timeout = &remoteLockTimeout
		}
		lock, err := client.LockFile(args[0], item.ID, timeout)
		if err != nil {
			return err
		}
		expires := "never"
		if lock.ExpiresAt != nil {
			expires = timeutil.FormatLocal(*lock.ExpiresAt)
		}
		table := output.NewTableData("Path", "Token", "Expires")
		table.AddRow(item.Path, lock.Token, expires)
		return printRemote(cmd, table, lock)
	},
}

var remoteUnlockCmd = &cobra.Command{
	Use:   "unlock <workspace> <path> <token>",
	Short: "Release a file lock",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRemoteClient()
		item, err := client.GetItemByPath(args[0], args[1])
		if err != nil {
			return err
		}
		if err := client.UnlockFile(args[0], item.ID, args[2]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s\n", item.Path)
		return nil
	},
}
