//go:build !capi_intern

package capi

const acceptInternal = false
