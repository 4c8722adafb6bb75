package config

const EnvPrefix = "PITCHPOINT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PITCHPOINT_DB_DSN"
	EnvDBHost = "PITCHPOINT_DB_HOST"
	EnvDBUser = "PITCHPOINT_DB_USER"
	EnvDBName = "PITCHPOINT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
