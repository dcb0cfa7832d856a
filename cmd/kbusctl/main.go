// Command kbusctl is a debug CLI for a running kbusd: it dials a
// device's Unix socket through internal/transport and issues one
// control operation per invocation. It never talks to internal/device
// directly — same boundary a real KBUS user-space tool would cross by
// opening the character device node.
//
// Grounded on linkerd2's multicluster CLI (_examples/linkerd-linkerd2):
// a cobra root command with persistent flags, one file per subcommand,
// each subcommand a small RunE that builds a client and does one thing.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/transport"
	"github.com/kbusd/kbus/internal/wire"
)

var (
	socketPath string
)

func main() {
	root := &cobra.Command{
		Use:   "kbusctl",
		Short: "Debug client for a running kbusd device",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/run/kbus/dev0.sock", "path to the device's Unix socket")

	root.AddCommand(newBindCmd())
	root.AddCommand(newUnbindCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newRecvCmd())
	root.AddCommand(newWaitCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (*transport.Client, error) {
	return transport.Dial("unix", socketPath)
}

func newBindCmd() *cobra.Command {
	var asReplier bool
	cmd := &cobra.Command{
		Use:   "bind NAME",
		Short: "Bind this connection as a Listener or Replier to NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Bind(args[0], asReplier); err != nil {
				return err
			}
			id, err := c.KsockID()
			if err != nil {
				return err
			}
			fmt.Printf("bound ksock %d as %s to %q; blocking to hold the binding, ctrl-c to release\n",
				id, roleName(asReplier), args[0])
			select {}
		},
	}
	cmd.Flags().BoolVarP(&asReplier, "replier", "r", false, "bind as Replier instead of Listener")
	return cmd
}

func newUnbindCmd() *cobra.Command {
	var asReplier bool
	cmd := &cobra.Command{
		Use:   "unbind NAME",
		Short: "Unbind NAME on a fresh connection (mostly useful for scripted teardown checks)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Unbind(args[0], asReplier)
		},
	}
	cmd.Flags().BoolVarP(&asReplier, "replier", "r", false, "unbind the Replier role instead of Listener")
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		to   uint32
		wantReply bool
	)
	cmd := &cobra.Command{
		Use:   "send NAME PAYLOAD",
		Short: "Send a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			name, payload := args[0], args[1]
			var flags wire.Flags
			if wantReply {
				flags |= wire.WantReply
			}
			hdr := wire.Header{
				To:      to,
				Flags:   uint32(flags),
				NameLen: uint32(len(name)),
				DataLen: uint32(len(payload)),
			}
			buf := wire.MarshalHeader(&hdr)
			namePadded := wire.Pad4(len(name) + 1)
			nameField := make([]byte, namePadded)
			copy(nameField, name)
			buf = append(buf, nameField...)
			dataPadded := wire.Pad4(len(payload))
			dataField := make([]byte, dataPadded)
			copy(dataField, payload)
			buf = append(buf, dataField...)
			buf = wire.PutEndGuard(buf)

			if err := c.WriteChunk(buf); err != nil {
				return err
			}
			id, err := c.Send()
			if err != nil {
				return err
			}
			fmt.Printf("sent id=%d.%d\n", id.NetworkID, id.SerialNum)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&to, "to", 0, "destination ksock id (0 lets the routing engine resolve by name)")
	cmd.Flags().BoolVar(&wantReply, "want-reply", false, "set WANT_REPLY")
	return cmd
}

func newRecvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Block until one message is queued, then print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			if _, err := c.Wait(device.ReadyForRead, 0); err != nil {
				return err
			}
			n, err := c.NextMsg()
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("no message queued")
				return nil
			}
			buf, err := c.ReadChunk(n)
			if err != nil {
				return err
			}
			var hdr wire.Header
			if err := wire.UnmarshalHeader(buf, &hdr); err != nil {
				return err
			}
			fmt.Printf("id=%d.%d from=%d to=%d flags=%#x len=%d\n",
				hdr.ID.NetworkID, hdr.ID.SerialNum, hdr.From, hdr.To, hdr.Flags, n)
			return nil
		},
	}
	return cmd
}

func newWaitCmd() *cobra.Command {
	var (
		forRead, forWrite bool
		timeoutMs         uint32
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the connection is ready for read and/or write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			var want device.ReadyFlags
			if forRead {
				want |= device.ReadyForRead
			}
			if forWrite {
				want |= device.ReadyForWrite
			}
			if want == 0 {
				want = device.ReadyForRead | device.ReadyForWrite
			}
			ready, err := c.Wait(want, time.Duration(timeoutMs)*time.Millisecond)
			if err != nil {
				return err
			}
			fmt.Printf("ready: read=%v write=%v\n",
				ready&device.ReadyForRead != 0, ready&device.ReadyForWrite != 0)
			return nil
		},
	}
	cmd.Flags().BoolVar(&forRead, "read", false, "wait for readability")
	cmd.Flags().BoolVar(&forWrite, "write", false, "wait for writability")
	cmd.Flags().Uint32Var(&timeoutMs, "timeout-ms", 0, "timeout in milliseconds (0 = block forever)")
	return cmd
}

func roleName(asReplier bool) string {
	if asReplier {
		return "Replier"
	}
	return "Listener"
}
