package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	NotifierNone  = "none"
	NotifierRedis = "redis"
	NotifierHTTP  = "http"
)

// gin.Context 键
const (
	RequestIDKey  = "request_id"
	ConfigKey     = "config"
	UserKey       = "user"
	RequestIDHead = "X-Request-ID"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
	MaxUploadSize   = 10 << 20
)

// QuizMaxScore 测验满分
const QuizMaxScore = 20.0

// 支付事件类型
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventAccountUpdated    = "account.updated"
)
