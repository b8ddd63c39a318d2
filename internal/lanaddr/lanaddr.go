// Package lanaddr finds the address other devices on the local network can
// use to reach this machine, for the startup banner.
package lanaddr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackpal/gateway"
	"github.com/mdp/qrterminal/v3"
)

var ErrNoAddress = errors.New("no local address on the gateway subnet")

// half-block cells for the terminal QR code
const (
	blackWhite = "\u2584"
	blackBlack = " "
	whiteBlack = "\u2580"
	whiteWhite = "\u2588"
)

// Discover returns the local IP on the interface that shares a subnet with
// the default gateway.
func Discover() (net.IP, error) {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, fmt.Errorf("discover gateway: %w", err)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := matchSubnet(addrs, gw); ip != nil {
			return ip, nil
		}
	}
	return nil, ErrNoAddress
}

func matchSubnet(addrs []net.Addr, gw net.IP) net.IP {
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ipnet.Contains(gw) {
			return ipnet.IP
		}
	}
	return nil
}

// URL builds the browser URL for host and the port of a listen address such
// as ":9000" or "0.0.0.0:9000".
func URL(host string, listenAddr string) (string, error) {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", err
	}
	if port == "" {
		return "", fmt.Errorf("listen address %q has no port", listenAddr)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port + "/", nil
}

// PrintQR renders url as a terminal QR code.
func PrintQR(w io.Writer, url string) {
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      blackBlack,
		WhiteBlackChar: whiteBlack,
		WhiteChar:      whiteWhite,
		BlackWhiteChar: blackWhite,
		QuietZone:      1,
	})
}
