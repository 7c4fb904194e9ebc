package main

import (
	"errors"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	modver "github.com/btt-go/btt-modver"
)

// appConfig 命令行程序的完整配置。
type appConfig struct {
	Resolver modver.Options `mapstructure:"resolver"`
	Listen   string         `mapstructure:"listen"`
	LogLevel string         `mapstructure:"log_level"`
}

// loadConfig 读取可选的配置文件与环境变量。
// 环境变量前缀为 MODVER，Key 中的 '.' 替换为 '_'，
// 例如 "resolver.config_path" 对应 MODVER_RESOLVER_CONFIG_PATH。
func loadConfig(path string) (*appConfig, error) {
	cfg := &appConfig{
		Resolver: modver.DefaultOptions(),
		Listen:   ":8080",
		LogLevel: "info",
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modver")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("MODVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs 注册 cfg 中的全部 Key，Unmarshal 时 viper 才会读取对应的环境变量。
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
