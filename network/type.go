package network

import (
	"errors"
	"net"
)

type SocketAddr struct {
	*net.UDPAddr
}

var (
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
