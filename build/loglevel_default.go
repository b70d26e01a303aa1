// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !debug && !nolog
// +build !debug,!nolog

package build

// LogLevel specifies the default log level.
var LogLevel = "info"
