package relay

import (
	"net"
	"time"

	"cachedns/cache"
	"cachedns/codec"
	"cachedns/common"
	"cachedns/logger"
	"cachedns/network"
	"cachedns/stats"
)

// HandlePacket drives one received datagram through validate, cache lookup,
// upstream forward, and reply. respCall sends bytes back to the original
// sender. A returned error means the datagram was dropped; no reply is ever
// sent for a dropped datagram.
func HandlePacket(data []byte, respCall func([]byte), store *cache.Store, upstream *network.SocketAddr) error {
	header, err := codec.ParseHeader(data)
	if err != nil {
		stats.DroppedTotal.WithLabelValues("truncated").Inc()
		return err
	}

	// A response arriving on the query port is never handled; this keeps
	// spoofed or looped-back replies out of the forwarding path.
	if header.IsResponse() {
		stats.DroppedTotal.WithLabelValues("not_a_query").Inc()
		if common.NeedDebug() {
			logger.Debug("Validate Packet", "ignoring response flagged datagram", header.ID)
		}
		return nil
	}

	question, _, err := codec.ParseQuestion(data)
	if err != nil {
		stats.DroppedTotal.WithLabelValues("malformed").Inc()
		return err
	}
	stats.QueriesTotal.WithLabelValues(stats.QTypeLabel(question.Type)).Inc()
	if common.NeedDebug() {
		logger.Debug("Parse Question", question.Name, question.Type, question.Class)
	}

	if values, ok := lookupCached(store, question); ok {
		stats.CacheHitsTotal.Inc()
		response, err := codec.BuildAnswerMessage(header.ID, question.Name, question.Type, values)
		if err != nil {
			stats.DroppedTotal.WithLabelValues("build_failed").Inc()
			return err
		}
		if common.NeedDebug() {
			logger.Debug("Cache Hit", question.Name, len(values), "values")
		}
		respCall(response)
		return nil
	}
	stats.CacheMissesTotal.Inc()

	timeout := time.Duration(common.Config.Advanced.UpstreamTimeoutMs) * time.Millisecond
	reply, err := network.ForwardQuery(data, upstream, timeout)
	if err != nil {
		stats.UpstreamErrorsTotal.Inc()
		stats.DroppedTotal.WithLabelValues("upstream").Inc()
		return err
	}

	// Populate the store before relaying, so an immediate follow-up query
	// can hit the cache. The raw upstream bytes go back verbatim either way.
	cacheAnswers(store, reply)
	respCall(reply)
	return nil
}

func lookupCached(store *cache.Store, question codec.Question) ([]string, bool) {
	switch question.Type {
	case codec.TypeA:
		return store.Lookup(cache.Forward, question.Name)
	case codec.TypePTR:
		return store.Lookup(cache.Reverse, question.Name)
	default:
		return nil, false
	}
}

// cacheAnswers folds the upstream reply's A and PTR answers into the store.
// Both record types land in the forward/reverse pair, keyed by the record
// name. Errors here are contained: a reply that cannot be parsed is simply
// not cached.
func cacheAnswers(store *cache.Store, reply []byte) {
	records, err := codec.ParseAnswerRecords(reply)
	if err != nil {
		logger.Warning("Cache Upstream Answers", err)
		return
	}
	for _, record := range records {
		switch record.Type {
		case codec.TypeA:
			if len(record.RData) != 4 {
				continue
			}
			store.AddAddress(record.Name, net.IP(record.RData).String(), int(record.TTL))
		case codec.TypePTR:
			domain, _, err := codec.DecodeName(reply, record.RDataOffset)
			if err != nil {
				logger.Warning("Cache Upstream Answers", "bad pointer rdata", err)
				continue
			}
			store.AddAddress(record.Name, domain, int(record.TTL))
		}
	}
}
