// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bassosimone/socol"
	"github.com/spf13/cobra"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	var (
		ipv6 bool
		port uint16
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a TCP echo server",
		Long: `Listen for TCP connections and echo back every byte received.

Use --port 0 to let the system choose the port, which is printed on the
standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			cfg, logger := gf.setup(ctx)

			reg := socol.NewRegistry(cfg, logger)
			defer reg.Close()

			listener, err := reg.AddListener(port, familyOf(ipv6))
			if err != nil {
				return fmt.Errorf("cannot listen on port %d: %w", port, err)
			}
			listener.OnConnection(func(l socol.Node, sock *socol.Socket, peer socol.Address) {
				node, err := l.Registry().Adopt(sock)
				if err != nil {
					logger.Warn("adoptDone", slog.Any("err", err), slog.String("remoteAddr", peer.String()))
					return
				}
				node.OnData(func(n socol.Node, data []byte) {
					n.Socket().SendExact(data)
				})
			})
			var failure error
			listener.OnError(func(n socol.Node) {
				failure = n.Socket().Err()
				cancel()
			})

			fmt.Fprintf(cmd.OutOrStdout(), "listening on port %d\n", listener.Port())
			gf.run(ctx, reg)
			return failure
		},
	}

	cmd.Flags().BoolVar(&ipv6, "ipv6", false, "listen on IPv6")
	cmd.Flags().Uint16VarP(&port, "port", "p", 7777, "port to listen on")

	return cmd
}
