// Package shaders embeds the WGSL source for the three simulation kernels.
// The embedded strings are the single normative description of device-side
// behavior; the gpu package only uploads buffers and dispatches them.
package shaders

import (
	_ "embed"
)

//go:embed rdme.wgsl
var RDMEWGSL string

//go:embed cme.wgsl
var CMEWGSL string

//go:embed final_texture.wgsl
var FinalTextureWGSL string
