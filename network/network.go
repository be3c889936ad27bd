package network

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"cachedns/common"
)

// ParseNewSocketAddr parses "host", "host:port", or "[v6]:port" into a UDP
// socket address, defaulting to port 53.
func ParseNewSocketAddr(addrStr string) (*SocketAddr, error) {
	ip := net.IP{}
	port := 53
	if strings.HasPrefix(addrStr, "[") {
		index := strings.Index(addrStr, "]")
		if index < 0 {
			return nil, errors.New("wrong socket address " + addrStr)
		}
		ip = net.ParseIP(addrStr[1:index])
		if ip == nil {
			return nil, errors.New("wrong socket address " + addrStr)
		}
		addrStr = addrStr[index+1:]
	} else {
		index := strings.Index(addrStr, ":")
		if index < 0 {
			ip = net.ParseIP(addrStr)
			if ip == nil {
				return nil, errors.New("wrong socket address " + addrStr)
			}
			addrStr = ""
		} else {
			ip = net.ParseIP(addrStr[:index])
			if ip == nil {
				return nil, errors.New("wrong socket address " + addrStr)
			}
			addrStr = addrStr[index:]
		}
	}
	if len(addrStr) > 0 {
		addrStr = addrStr[1:]
		myPort, err := strconv.Atoi(addrStr)
		if err != nil {
			return nil, err
		}
		if myPort < 1 || myPort > 65535 {
			return nil, errors.New("invalid port")
		}
		port = myPort
	}
	return &SocketAddr{UDPAddr: &net.UDPAddr{IP: ip, Port: port}}, nil
}

// ForwardQuery sends the raw query bytes to the upstream resolver on a fresh
// socket and waits up to timeout for a single reply datagram. There is no
// retry and no fallback resolver.
func ForwardQuery(query []byte, upstream *SocketAddr, timeout time.Duration) ([]byte, error) {
	conn, err := net.DialUDP("udp", nil, upstream.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = conn.Close()
	}()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if _, err := conn.Write(query); err != nil {
		return nil, wrapNetworkErr(err)
	}
	buffer := make([]byte, common.IntMax(common.Config.Advanced.MaxReceivedPacketSize, common.StandardMaxDNSPacketSize))
	n, err := conn.Read(buffer)
	if err != nil {
		return nil, wrapNetworkErr(err)
	}
	return buffer[:n], nil
}

func wrapNetworkErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
