package config

import (
	"os"
	"strconv"

	"cadverse/internal/shared/types"
	"gopkg.in/ini.v1"
)

// LoadIni 加载 cadverse.ini 行为配置文件。
// cfg 中已有的值作为默认值，文件中出现的键会覆盖它们。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	applyEnv(cfg)
	return nil
}

// Load 返回默认配置叠加 ini 文件后的结果。文件不存在时只使用默认值和环境变量。
func Load(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		applyEnv(cfg)
		return cfg, nil
	}
	if err := LoadIni(cfg, fileName); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *types.Config) {
	overrideFromEnvString(&cfg.ClientConf.ServerHost, "CADVERSE_HOST")
	overrideFromEnvInt(&cfg.ServerConf.Port, "CADVERSE_PORT")
	overrideFromEnvInt(&cfg.ClientConf.ServerPort, "CADVERSE_PORT")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
