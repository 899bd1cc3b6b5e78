package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/logging"
)

// DefaultDecodeHooks 是 Unmarshal 的默认钩子集：viper 自带的时长/切片
// 钩子，加上本项目的链路类型、日志级别和字节大小转换。
func DefaultDecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		StringToPacketTypeHookFunc(),
		StringToLogLevelHookFunc(),
		StringToByteSizeHookFunc(),
	}
}

// StringToPacketTypeHookFunc 把 "ethernet" 这类名称解码成 mpcap.PacketType。
func StringToPacketTypeHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(mpcap.PacketType(0)) {
			return data, nil
		}
		return mpcap.ParsePacketType(data.(string))
	}
}

// StringToLogLevelHookFunc 把 "info" 这类名称解码成 logging.Level。
func StringToLogLevelHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(logging.InfoLevel) {
			return data, nil
		}
		return logging.ParseLevel(data.(string))
	}
}

// StringToByteSizeHookFunc 把 "10MB" 这类大小解码成 uint64 字节数。
// 纯数字原样通过，因此普通的 uint64 字段不受影响。
func StringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Uint64 {
			return data, nil
		}
		return ParseByteSize(data.(string))
	}
}

// ParseByteSize 解析 "4096"、"64KB"、"10MB"、"1GB" 这样的大小写法，
// 单位按二进制进位，大小写不敏感。
func ParseByteSize(s string) (uint64, error) {
	str := strings.TrimSpace(strings.ToUpper(s))
	if str == "" {
		return 0, fmt.Errorf("config: empty size")
	}

	unit := uint64(1)
	switch {
	case strings.HasSuffix(str, "GB"):
		unit = 1 << 30
		str = strings.TrimSuffix(str, "GB")
	case strings.HasSuffix(str, "MB"):
		unit = 1 << 20
		str = strings.TrimSuffix(str, "MB")
	case strings.HasSuffix(str, "KB"):
		unit = 1 << 10
		str = strings.TrimSuffix(str, "KB")
	case strings.HasSuffix(str, "B"):
		str = strings.TrimSuffix(str, "B")
	}

	n, err := strconv.ParseUint(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: bad size %q: %w", s, err)
	}
	return n * unit, nil
}
