//go:build !linux && !darwin

package system

import "github.com/hashicorp/go-hclog"

func InitResourceLimits(uint64, hclog.Logger) {}
