package server

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"cachedns/cache"
	"cachedns/common"
	"cachedns/logger"
	"cachedns/network"
	"cachedns/relay"
	"cachedns/stats"
)

type Server struct {
	store        *cache.Store
	upstream     *network.SocketAddr
	conn         *net.UDPConn
	running      atomic.Bool
	sweeperDone  chan struct{}
	snapshotPath string
}

func New() (*Server, error) {
	upstream, err := network.ParseNewSocketAddr(common.Config.Upstream.Forwarder)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:        cache.NewStore(),
		upstream:     upstream,
		sweeperDone:  make(chan struct{}),
		snapshotPath: common.Config.Cache.SnapshotFilePath,
	}, nil
}

func (server *Server) Store() *cache.Store {
	return server.store
}

// Run loads the snapshot, binds the listening socket, starts the sweeper,
// and serves datagrams until Stop is called. Binding is the only fatal
// failure; everything after is contained per packet.
func (server *Server) Run() error {
	_ = server.store.Load(server.snapshotPath)

	udpAddr, err := net.ResolveUDPAddr("udp", common.Config.Service.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			logger.Error("Bind Listen Socket", "insufficient privilege for", common.Config.Service.ListenAddr)
		} else {
			logger.Error("Bind Listen Socket", common.Config.Service.ListenAddr, err)
		}
		return err
	}
	server.conn = conn
	defer func() {
		_ = conn.Close()
	}()

	server.running.Store(true)
	go server.sweeper()
	logger.Info("Start Server", "listening on", common.Config.Service.ListenAddr,
		"forwarding to", server.upstream.UDPAddr.String())

	server.listen()
	server.shutdown()
	return nil
}

// Stop requests shutdown. The listener and the sweeper both poll the flag
// between bounded waits, so Run returns within about a second. In-flight
// packet handlers are not awaited; the process may exit while one is still
// running.
func (server *Server) Stop() {
	server.running.Store(false)
}

// SaveSnapshot sweeps and writes the store to disk. Safe to call while
// serving; used by the console's save command and during shutdown.
func (server *Server) SaveSnapshot() {
	_ = server.store.Save(server.snapshotPath)
}

func (server *Server) listen() {
	pollTimeout := time.Duration(common.Config.Advanced.ListenerPollTimeoutMs) * time.Millisecond
	bufferSize := common.IntMax(common.Config.Advanced.MaxReceivedPacketSize, common.StandardMaxDNSPacketSize)
	for server.running.Load() {
		_ = server.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		buffer := make([]byte, bufferSize)
		n, addr, err := server.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if server.running.Load() {
				logger.Warning("Read UDP Packet", err)
			}
			continue
		}
		if common.NeedDebug() {
			logger.Debug("Read UDP Packet", "read", n, "bytes from", addr)
		}
		go func(data []byte, addr *net.UDPAddr) {
			if err := relay.HandlePacket(data, func(bytes []byte) {
				if _, err := server.conn.WriteToUDP(bytes, addr); err != nil {
					logger.Warning("Write UDP Packet", addr, err)
				}
			}, server.store, server.upstream); err != nil {
				logger.Warning("Handle DNS Packet", addr, err)
			}
		}(buffer[:n], addr)
	}
}

// sweeper evicts expired records every SweepIntervalSec, sleeping in
// one-second increments so a stop request is honored quickly.
func (server *Server) sweeper() {
	defer close(server.sweeperDone)
	interval := common.IntMax(common.Config.Cache.SweepIntervalSec, 1)
	for server.running.Load() {
		server.store.Sweep(time.Now())
		stats.CacheEntries.Set(float64(server.store.EntryCount()))
		for i := 0; i < interval && server.running.Load(); i++ {
			time.Sleep(time.Second)
		}
	}
}

func (server *Server) shutdown() {
	joinTimeout := time.Duration(common.Config.Advanced.StopJoinTimeoutMs) * time.Millisecond
	select {
	case <-server.sweeperDone:
	case <-time.After(joinTimeout):
		logger.Warning("Stop Server", "sweeper did not stop within", joinTimeout)
	}
	server.SaveSnapshot()
	logger.Info("Stop Server", "server stopped")
}
