package config

const (
	// EnvPrefix namespaces every environment variable the app reads.
	EnvPrefix = "AVOBERRY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AVOBERRY_DB_DSN"
	EnvDBHost = "AVOBERRY_DB_HOST"
	EnvDBUser = "AVOBERRY_DB_USER"
	EnvDBName = "AVOBERRY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
