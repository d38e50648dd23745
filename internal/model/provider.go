package model

import (
	"fmt"
)

// Provider 支付/平台提供方
type Provider string

const (
	ProviderApple  Provider = "APPLE"
	ProviderGoogle Provider = "GOOGLE"
)

// Providers 所有可识别的提供方
var Providers = []Provider{ProviderApple, ProviderGoogle}

// ParseProvider 按名称解析提供方（区分大小写）
func ParseProvider(name string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// MustParseProvider 同 ParseProvider，解析失败时 panic。仅用于已校验过的输入。
func MustParseProvider(name string) Provider {
	p, err := ParseProvider(name)
	if err != nil {
		panic(err)
	}
	return p
}
