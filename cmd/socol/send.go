// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/bassosimone/socol"
	"github.com/spf13/cobra"
)

func sendCmd(gf *globalFlags) *cobra.Command {
	var (
		dnsServer string
		host      string
		ipv6      bool
		message   string
		port      string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a TCP echo server and print the reply",
		Long: `Connect to host and port, send the message, and wait until as many
bytes as the message come back.

The host may be an IP address or a domain name, which is resolved using
the system resolver or, with --dns, by querying the given DNS server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return errors.New("--message must not be empty")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			cfg, logger := gf.setup(ctx)
			if dnsServer != "" {
				server, err := netip.ParseAddrPort(dnsServer)
				if err != nil {
					return fmt.Errorf("invalid --dns value: %w", err)
				}
				cfg.Resolver = socol.NewDNSResolver(cfg, server, logger)
			}

			reg := socol.NewRegistry(cfg, logger)
			defer reg.Close()

			node, err := reg.AddOutboundDomain(ctx, familyOf(ipv6), host, port)
			if err != nil {
				return err
			}
			var (
				failure error
				reply   []byte
			)
			node.OnConnected(func(n socol.Node) {
				n.Socket().SendExact([]byte(message))
			})
			node.OnData(func(n socol.Node, data []byte) {
				reply = append(reply, data...)
				if len(reply) >= len(message) {
					cancel()
				}
			})
			node.OnError(func(n socol.Node) {
				failure = n.Socket().Err()
				cancel()
			})

			gf.run(ctx, reg)
			switch {
			case failure != nil:
				return fmt.Errorf("cannot talk with %s:%s: %w", host, port, failure)
			case len(reply) < len(message):
				return fmt.Errorf("no complete reply from %s:%s: %w", host, port, context.Cause(ctx))
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(reply))
			return nil
		},
	}

	cmd.Flags().StringVar(&dnsServer, "dns", "", "DNS-over-UDP server to use (e.g., 8.8.8.8:53)")
	cmd.Flags().StringVar(&host, "host", "localhost", "host to connect to")
	cmd.Flags().BoolVar(&ipv6, "ipv6", false, "connect using IPv6")
	cmd.Flags().StringVarP(&message, "message", "m", "hello", "message to send")
	cmd.Flags().StringVarP(&port, "port", "p", "7777", "port to connect to (service names require the system resolver)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall timeout")

	return cmd
}
