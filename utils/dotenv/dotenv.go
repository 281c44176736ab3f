package dotenv

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	DevEnv  = "dev"
	TestEnv = "test"
	ProdEnv = "prod"

	envKey = "PEEK4C_ENV"
)

// LoadDotEnvs loads the .env files following the convention: https://github.com/bkeepers/dotenv#what-other-env-files-can-i-use
// It only need to be called once in main function, other code reads the
// resulting variables through os.Getenv or viper's AutomaticEnv.
func LoadDotEnvs() error {
	loadDotEnvs("")
	return nil
}

func loadDotEnvs(rootPath string) {
	env := RuntimeEnv()

	// .env.[runtime_env].local has highest priority, usually contains secrets
	// such as the postgres password.
	godotenv.Load(rootPath + ".env." + env + ".local")
	godotenv.Load(rootPath + ".env.local")
	// .env.[runtime_env] usually contains db connection information
	godotenv.Load(rootPath + ".env." + env)
	// .env usually contains shared variables(which might be overwritten by envs above)
	godotenv.Load(rootPath + ".env")
}

// RuntimeEnv returns the value of PEEK4C_ENV, defaulting to dev.
func RuntimeEnv() string {
	env := os.Getenv(envKey)
	if env == "" {
		return DevEnv
	}
	return env
}

func IsProdEnv() bool {
	return RuntimeEnv() == ProdEnv
}
