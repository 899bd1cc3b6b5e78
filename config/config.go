package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote" // 匿名导入以支持远程配置
	"golang.org/x/exp/rand"
)

const (
	watchRetryBase = 2 * time.Second
	watchRetryMax  = time.Minute
)

// Config 是配置加载器，封装 viper：本地文件、环境变量、远程源三合一。
type Config struct {
	v      *viper.Viper
	opts   *Options
	loaded bool
	mu     sync.RWMutex
}

// Logger 是内部日志的最小接口，方便接入应用自己的日志系统。
type Logger interface {
	Printf(format string, v ...any)
}

// DecoderOption 声明式地配置 Unmarshal 的解码行为。
type DecoderOption struct {
	TagName          string
	WeaklyTypedInput *bool
	ErrorUnused      *bool
	DecodeHooks      []mapstructure.DecodeHookFunc
}

// DecoderOptionFunc 修改 DecoderOption。
type DecoderOptionFunc func(*DecoderOption)

// Options 保存创建 Config 所需的全部选项。
type Options struct {
	Name  string   // 配置文件名（不带扩展名）
	Type  string   // 配置文件类型，如 "yaml"
	Paths []string // 搜索路径
	File  string   // 完整路径，设置后忽略 Name/Type/Paths

	EnvPrefix   string
	EnvReplacer *strings.Replacer

	DecoderOption *DecoderOption

	RemoteProvider string
	RemoteEndpoint string
	RemotePath     string

	OnChangeCallback func(c *Config)

	Logger Logger
}

// Option 修改 Options。
type Option func(*Options)

// WithFile 指定完整的配置文件路径。
func WithFile(path string) Option {
	return func(o *Options) {
		o.File = path
	}
}

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithType(typ string) Option {
	return func(o *Options) {
		o.Type = typ
	}
}

func WithPaths(paths ...string) Option {
	return func(o *Options) {
		o.Paths = append(o.Paths, paths...)
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// WithRemoteProvider 设置远程配置源。
// provider: "etcd3"、"consul" 等；endpoint: "http://127.0.0.1:2379"；path: "/config/mpcap.yaml"
func WithRemoteProvider(provider, endpoint, path string) Option {
	return func(o *Options) {
		o.RemoteProvider = provider
		o.RemoteEndpoint = endpoint
		o.RemotePath = path
	}
}

// WithOnChangeCallback 设置配置变更回调，本地与远程变更都会触发。
func WithOnChangeCallback(cb func(c *Config)) Option {
	return func(o *Options) {
		o.OnChangeCallback = cb
	}
}

func WithLogger(logger Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDecoderOptions 设置默认解码器选项。
func WithDecoderOptions(opts ...DecoderOptionFunc) Option {
	return func(o *Options) {
		if o.DecoderOption == nil {
			o.DecoderOption = &DecoderOption{}
		}
		for _, opt := range opts {
			opt(o.DecoderOption)
		}
	}
}

func WithTagName(tagName string) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.TagName = tagName
	}
}

func WithWeaklyTypedInput(enabled bool) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.WeaklyTypedInput = &enabled
	}
}

func WithErrorUnused(enabled bool) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.ErrorUnused = &enabled
	}
}

func WithDecodeHooks(hooks ...mapstructure.DecodeHookFunc) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.DecodeHooks = append(opt.DecodeHooks, hooks...)
	}
}

// New 创建配置加载器。加载优先级：环境变量 > 配置文件 > 默认值。
func New(opts ...Option) (*Config, error) {
	options := &Options{
		Name:        "mpcap",
		Type:        "yaml",
		Paths:       []string{".", "/etc/mpcap/"},
		EnvPrefix:   "MPCAP",
		EnvReplacer: strings.NewReplacer(".", "_"),
		DecoderOption: &DecoderOption{
			TagName:     "mapstructure",
			DecodeHooks: DefaultDecodeHooks(),
		},
		Logger: &defaultLogger{},
	}
	for _, opt := range opts {
		opt(options)
	}

	v := viper.New()

	if options.File != "" {
		v.SetConfigFile(options.File)
	} else {
		v.SetConfigName(options.Name)
		v.SetConfigType(options.Type)
		for _, path := range options.Paths {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvPrefix(options.EnvPrefix)
	v.SetEnvKeyReplacer(options.EnvReplacer)
	v.AutomaticEnv()

	return &Config{v: v, opts: options}, nil
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	fmt.Printf(format+"\n", v...)
}

// Load 读取本地文件与远程源并启动监控。重复调用只生效一次。
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	v := c.v
	options := c.opts

	if err := v.ReadInConfig(); err != nil {
		// 文件不存在不算错，环境变量和远程源还能顶上。
		var nfErr viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &nfErr) && !errors.As(err, &pathErr) {
			return fmt.Errorf("config: read file: %w", err)
		}
	}

	if options.RemoteProvider != "" && options.RemoteEndpoint != "" && options.RemotePath != "" {
		if err := v.AddRemoteProvider(options.RemoteProvider, options.RemoteEndpoint, options.RemotePath); err != nil {
			return fmt.Errorf("config: add remote provider: %w", err)
		}
		v.SetConfigType(options.Type)
		if err := v.ReadRemoteConfig(); err != nil {
			options.Logger.Printf("config: read remote failed, using local/env only: %v", err)
		}
	}

	c.watch()
	c.loaded = true
	return nil
}

// Unmarshal 把已加载的配置解析到 target。未加载时先 Load。
func (c *Config) Unmarshal(target any, opts ...DecoderOptionFunc) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		if err := c.Load(); err != nil {
			return err
		}
	}

	finalOpt := &DecoderOption{}
	if c.opts.DecoderOption != nil {
		*finalOpt = *c.opts.DecoderOption
	}
	for _, opt := range opts {
		opt(finalOpt)
	}

	return c.v.Unmarshal(target, buildViperDecoderOptions(finalOpt)...)
}

func buildViperDecoderOptions(opt *DecoderOption) []viper.DecoderConfigOption {
	if opt == nil {
		return nil
	}
	return []viper.DecoderConfigOption{func(cfg *mapstructure.DecoderConfig) {
		if opt.TagName != "" {
			cfg.TagName = opt.TagName
		}
		if opt.WeaklyTypedInput != nil {
			cfg.WeaklyTypedInput = *opt.WeaklyTypedInput
		}
		if opt.ErrorUnused != nil {
			cfg.ErrorUnused = *opt.ErrorUnused
		}
		if len(opt.DecodeHooks) > 0 {
			cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(opt.DecodeHooks...)
		}
	}}
}

// SetDefault 设置某个键的默认值。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *Config) AllSettings() map[string]any {
	return c.v.AllSettings()
}

// watch 监控本地文件与远程源。远程侧断开后按抖动退避重试，避免雪崩。
func (c *Config) watch() {
	v := c.v
	options := c.opts

	v.OnConfigChange(func(e fsnotify.Event) {
		options.Logger.Printf("config: file changed: %s", e.Name)
		if options.OnChangeCallback != nil {
			options.OnChangeCallback(c)
		}
	})
	v.WatchConfig()

	if options.RemoteProvider != "" {
		go func() {
			rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
			backoff := watchRetryBase
			for {
				if err := v.WatchRemoteConfigOnChannel(); err != nil {
					d := backoff + time.Duration(rng.Int63n(int64(backoff)))
					options.Logger.Printf("config: watch remote: %v, retrying in %s", err, d)
					time.Sleep(d)
					if backoff < watchRetryMax {
						backoff *= 2
					}
					continue
				}
				backoff = watchRetryBase
				options.Logger.Printf("config: remote changed")
				if options.OnChangeCallback != nil {
					options.OnChangeCallback(c)
				}
			}
		}()
	}
}
