package relay

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"cachedns/cache"
	"cachedns/codec"
	"cachedns/common"
	"cachedns/network"
)

func buildQuery(t *testing.T, id uint16, name string, qtype dnsmessage.Type) []byte {
	t.Helper()
	msg := dnsmessage.Message{
		Header: dnsmessage.Header{ID: id, RecursionDesired: true},
		Questions: []dnsmessage.Question{{
			Name:  dnsmessage.MustNewName(name),
			Type:  qtype,
			Class: dnsmessage.ClassINET,
		}},
	}
	raw, err := msg.Pack()
	require.NoError(t, err)
	return raw
}

// fakeUpstream answers every query with the records from makeAnswer and
// counts the queries it saw.
func fakeUpstream(t *testing.T, makeAnswer func(q dnsmessage.Question) []dnsmessage.Resource) (*network.SocketAddr, *int32) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	queryCount := new(int32)
	go func() {
		buffer := make([]byte, 512)
		for {
			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				return
			}
			atomic.AddInt32(queryCount, 1)
			var query dnsmessage.Message
			if err := query.Unpack(buffer[:n]); err != nil || len(query.Questions) != 1 || makeAnswer == nil {
				continue
			}
			reply := dnsmessage.Message{
				Header: dnsmessage.Header{
					ID:                 query.Header.ID,
					Response:           true,
					RecursionAvailable: true,
				},
				Questions: query.Questions,
				Answers:   makeAnswer(query.Questions[0]),
			}
			raw, err := reply.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(raw, addr)
		}
	}()
	return &network.SocketAddr{UDPAddr: conn.LocalAddr().(*net.UDPAddr)}, queryCount
}

func silentUpstream(t *testing.T) *network.SocketAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &network.SocketAddr{UDPAddr: conn.LocalAddr().(*net.UDPAddr)}
}

func TestShortDatagramIsDroppedWithoutReply(t *testing.T) {
	store := cache.NewStore()
	responded := false
	err := HandlePacket(make([]byte, 8), func([]byte) { responded = true }, store, silentUpstream(t))
	assert.ErrorIs(t, err, codec.ErrTruncatedMessage)
	assert.False(t, responded)
}

func TestResponseDatagramIsIgnored(t *testing.T) {
	store := cache.NewStore()
	query := buildQuery(t, 1, "example.com.", dnsmessage.TypeA)
	query[2] |= 0x80 // QR bit: this is a response, not a query

	responded := false
	err := HandlePacket(query, func([]byte) { responded = true }, store, silentUpstream(t))
	assert.NoError(t, err)
	assert.False(t, responded)
}

func TestMalformedQuestionIsDropped(t *testing.T) {
	store := cache.NewStore()
	query := buildQuery(t, 2, "example.com.", dnsmessage.TypeA)
	query[12] = 0xC0 // question name becomes a self-referential pointer
	query[13] = 12

	responded := false
	err := HandlePacket(query[:14], func([]byte) { responded = true }, store, silentUpstream(t))
	assert.Error(t, err)
	assert.False(t, responded)
}

func TestCacheHitAnswersFromStore(t *testing.T) {
	store := cache.NewStore()
	store.AddAddress("example.com", "93.184.216.34", 60)

	upstream, queryCount := fakeUpstream(t, nil)
	var response []byte
	err := HandlePacket(buildQuery(t, 0xABCD, "example.com.", dnsmessage.TypeA),
		func(bytes []byte) { response = bytes }, store, upstream)
	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, int32(0), atomic.LoadInt32(queryCount), "a hit must not touch the upstream")

	var msg dnsmessage.Message
	require.NoError(t, msg.Unpack(response))
	assert.Equal(t, uint16(0xABCD), msg.Header.ID)
	require.Len(t, msg.Answers, 1)
	body, ok := msg.Answers[0].Body.(*dnsmessage.AResource)
	require.True(t, ok)
	assert.Equal(t, [4]byte{93, 184, 216, 34}, body.A)
}

func TestCacheHitPTR(t *testing.T) {
	store := cache.NewStore()
	store.Insert(cache.Reverse, "34.216.184.93.in-addr.arpa", "example.com", 60)

	var response []byte
	err := HandlePacket(buildQuery(t, 5, "34.216.184.93.in-addr.arpa.", dnsmessage.TypePTR),
		func(bytes []byte) { response = bytes }, store, silentUpstream(t))
	require.NoError(t, err)
	require.NotNil(t, response)

	var msg dnsmessage.Message
	require.NoError(t, msg.Unpack(response))
	require.Len(t, msg.Answers, 1)
	body, ok := msg.Answers[0].Body.(*dnsmessage.PTRResource)
	require.True(t, ok)
	assert.Equal(t, "example.com.", body.PTR.String())
}

func TestCacheMissForwardsOnceAndCachesBeforeRelaying(t *testing.T) {
	store := cache.NewStore()
	upstream, queryCount := fakeUpstream(t, func(q dnsmessage.Question) []dnsmessage.Resource {
		return []dnsmessage.Resource{{
			Header: dnsmessage.ResourceHeader{
				Name:  q.Name,
				Type:  dnsmessage.TypeA,
				Class: dnsmessage.ClassINET,
				TTL:   300,
			},
			Body: &dnsmessage.AResource{A: [4]byte{93, 184, 216, 34}},
		}}
	})

	cachedBeforeReply := false
	var response []byte
	err := HandlePacket(buildQuery(t, 0x0101, "example.com.", dnsmessage.TypeA),
		func(bytes []byte) {
			response = bytes
			_, cachedBeforeReply = store.Lookup(cache.Forward, "example.com")
		}, store, upstream)
	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, int32(1), atomic.LoadInt32(queryCount), "exactly one forwarded query")
	assert.True(t, cachedBeforeReply, "answers must be cached before the reply is relayed")

	// Both directions are indexed from one A answer.
	forward, ok := store.Lookup(cache.Forward, "example.com")
	require.True(t, ok)
	assert.Equal(t, []string{"93.184.216.34"}, forward)
	reverse, ok := store.Lookup(cache.Reverse, "93.184.216.34")
	require.True(t, ok)
	assert.Equal(t, []string{"example.com"}, reverse)

	// The raw upstream bytes are relayed verbatim: same ID, an answer, QR set.
	var msg dnsmessage.Message
	require.NoError(t, msg.Unpack(response))
	assert.Equal(t, uint16(0x0101), msg.Header.ID)
	assert.True(t, msg.Header.Response)
	require.Len(t, msg.Answers, 1)
}

func TestPTRAnswersFoldIntoAddressTables(t *testing.T) {
	store := cache.NewStore()
	upstream, _ := fakeUpstream(t, func(q dnsmessage.Question) []dnsmessage.Resource {
		return []dnsmessage.Resource{{
			Header: dnsmessage.ResourceHeader{
				Name:  q.Name,
				Type:  dnsmessage.TypePTR,
				Class: dnsmessage.ClassINET,
				TTL:   600,
			},
			Body: &dnsmessage.PTRResource{PTR: dnsmessage.MustNewName("example.com.")},
		}}
	})

	err := HandlePacket(buildQuery(t, 6, "34.216.184.93.in-addr.arpa.", dnsmessage.TypePTR),
		func([]byte) {}, store, upstream)
	require.NoError(t, err)

	// PTR answers land in the forward/reverse pair, keyed by the record
	// name; the nameserver table stays empty.
	forward, ok := store.Lookup(cache.Forward, "34.216.184.93.in-addr.arpa")
	require.True(t, ok)
	assert.Equal(t, []string{"example.com"}, forward)
	reverse, ok := store.Lookup(cache.Reverse, "example.com")
	require.True(t, ok)
	assert.Equal(t, []string{"34.216.184.93.in-addr.arpa"}, reverse)
	_, ok = store.Lookup(cache.NSRecords, "34.216.184.93.in-addr.arpa")
	assert.False(t, ok)
}

func TestUpstreamTimeoutDropsPacket(t *testing.T) {
	previous := common.Config.Advanced.UpstreamTimeoutMs
	common.Config.Advanced.UpstreamTimeoutMs = 100
	defer func() { common.Config.Advanced.UpstreamTimeoutMs = previous }()

	store := cache.NewStore()
	responded := false
	start := time.Now()
	err := HandlePacket(buildQuery(t, 7, "example.com.", dnsmessage.TypeA),
		func([]byte) { responded = true }, store, silentUpstream(t))
	assert.ErrorIs(t, err, network.ErrUpstreamTimeout)
	assert.False(t, responded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUnsupportedQTypeBypassesCache(t *testing.T) {
	store := cache.NewStore()
	// A cached forward entry must not satisfy an MX query.
	store.AddAddress("example.com", "93.184.216.34", 60)

	upstream, queryCount := fakeUpstream(t, func(q dnsmessage.Question) []dnsmessage.Resource {
		return nil
	})
	err := HandlePacket(buildQuery(t, 8, "example.com.", dnsmessage.TypeMX),
		func([]byte) {}, store, upstream)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(queryCount))
}
