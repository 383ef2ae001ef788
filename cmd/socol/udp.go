// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/bassosimone/socol"
	"github.com/spf13/cobra"
)

func udpCmd(gf *globalFlags) *cobra.Command {
	var (
		flowLabel uint32
		ipv6      bool
		port      uint16
	)

	cmd := &cobra.Command{
		Use:   "udp",
		Short: "Run a UDP echo server",
		Long:  `Bind a UDP socket and send every datagram back to its sender.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			cfg, logger := gf.setup(ctx)

			reg := socol.NewRegistry(cfg, logger)
			defer reg.Close()

			var (
				node socol.Node
				err  error
			)
			if ipv6 {
				node, err = reg.AddDatagramFlow(port, flowLabel)
			} else {
				node, err = reg.AddDatagram(port, socol.IPv4)
			}
			if err != nil {
				return fmt.Errorf("cannot bind port %d: %w", port, err)
			}
			node.OnData(func(n socol.Node, data []byte) {
				n.Socket().SendTo(n.Sender(), data)
			})
			var failure error
			node.OnError(func(n socol.Node) {
				failure = n.Socket().Err()
				cancel()
			})

			fmt.Fprintf(cmd.OutOrStdout(), "bound to port %d\n", node.Port())
			gf.run(ctx, reg)
			return failure
		},
	}

	cmd.Flags().Uint32Var(&flowLabel, "flow-label", 0, "IPv6 flow label of the bind address")
	cmd.Flags().BoolVar(&ipv6, "ipv6", false, "bind an IPv6 socket")
	cmd.Flags().Uint16VarP(&port, "port", "p", 7777, "port to bind")

	return cmd
}
