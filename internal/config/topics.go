package config

const (
	// TopicReindex is the NSQ topic for corpus reindex requests.
	TopicReindex = "agentops.reindex"

	// ChannelReindexWorker is the channel the reindex worker consumes from.
	ChannelReindexWorker = "upsert_worker"
)
