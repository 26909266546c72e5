package store

// Download is the aggregated session row (§3). A NULL-valued pointer
// field mirrors an absent SQL column rather than a zero value.
type Download struct {
	ID             int64
	Service        string
	ClientIP       string
	StartTimeUTC   string
	EndTimeUTC     string
	StartTimeLocal string
	EndTimeLocal   string
	CacheHitBytes  int64
	CacheMissBytes int64
	IsActive       bool
	LastURL        string
	DepotID        *int64
	GameAppID      *int64
	GameName       *string
	GameImageURL   *string
}

// LogEntry is the raw per-request row, one per accepted parsed entry
// (§3, §6).
type LogEntry struct {
	ID           int64
	TimestampUTC string
	ClientIP     string
	Service      string
	Method       string
	URL          string
	StatusCode   int
	BytesServed  int64
	CacheStatus  string
	DepotID      *int64
	DownloadID   int64
}

// ClientStats / ServiceStats are the running totals of §3.
type ClientStats struct {
	ClientIP            string
	TotalCacheHitBytes  int64
	TotalCacheMissBytes int64
	LastActivityUTC     string
	LastActivityLocal   string
	TotalDownloads      int64
}

type ServiceStats struct {
	Service             string
	TotalCacheHitBytes  int64
	TotalCacheMissBytes int64
	LastActivityUTC     string
	LastActivityLocal   string
	TotalDownloads      int64
}

// DepotMapping is the external, read-only depot->app table (§3).
type DepotMapping struct {
	DepotID int64
	AppID   int64
	AppName string
	IsOwner bool
}

// StreamSession is the per-session transport-log summary row (§3).
type StreamSession struct {
	ID             int64
	ClientIP       string
	Protocol       string
	Status         string
	BytesSent      int64
	BytesReceived  int64
	DurationSecs   int64
	UpstreamHost   string
	StartTimeUTC   string
	EndTimeUTC     string
	Datasource     string
}
