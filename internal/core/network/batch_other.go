//go:build unix && !linux

package network

const nativeBatch = false
