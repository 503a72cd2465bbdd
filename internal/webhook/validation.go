// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// privateIPRanges defines CIDR blocks for private/reserved networks.
var privateIPRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // link-local (includes cloud metadata 169.254.169.254)
	"0.0.0.0/8",
	"100.64.0.0/10", // shared address space (RFC 6598)
	"198.18.0.0/15", // benchmarking
	"224.0.0.0/4",   // multicast
	"240.0.0.0/4",   // reserved
	"fc00::/7",      // unique local
	"fe80::/10",     // link-local
	"::1/128",
	"::/128",
}

var parsedPrivateRanges []*net.IPNet

func init() {
	for _, cidr := range privateIPRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR in privateIPRanges: " + cidr)
		}
		parsedPrivateRanges = append(parsedPrivateRanges, network)
	}
}

var blockedHostnames = []string{
	"metadata.google.internal",
	"metadata.goog",
}

// ValidateEndpointURL checks that a webhook URL is safe to POST to from the
// server. Unless allowPrivate is set it rejects localhost, cloud metadata
// hosts and any hostname resolving to a private or reserved address.
func ValidateEndpointURL(rawURL string, allowPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("only http and https URLs are allowed")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if allowPrivate {
		return nil
	}

	lower := strings.ToLower(hostname)
	if lower == "localhost" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return fmt.Errorf("cloud metadata endpoints are not allowed")
		}
	}

	ips, err := net.LookupHost(hostname)
	if err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", hostname, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private/reserved IP address (%s)", ipStr)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range parsedPrivateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialContext refuses connections to private or reserved addresses. It
// checks the addresses actually dialed, so a hostname that passed
// ValidateEndpointURL cannot later be rebound to an internal address.
func safeDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", host, err)
		}
		for _, ipAddr := range ips {
			if isPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s (resolved from %q) is blocked", ipAddr.IP, host)
			}
		}

		// Dial the checked IPs, not the hostname.
		for _, ipAddr := range ips {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if dialErr == nil {
				return conn, nil
			}
			err = dialErr
		}
		return nil, fmt.Errorf("failed to connect to %q: %w", host, err)
	}
}
