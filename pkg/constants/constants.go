package constants

type contextKey string

const (
	TxKey   contextKey = "tx"
	PoolKey contextKey = "pool"
)

const LoggerKey contextKey = "logger"
