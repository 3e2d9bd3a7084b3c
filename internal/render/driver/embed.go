// Package driver provides the embedded Blender driver script.
package driver

import _ "embed"

// Script is the Python driver run inside Blender. It reads one job file
// and renders it with blendertoolbox.
//
//go:embed render_job.py
var Script string

// FileName is the name the driver is written under.
const FileName = "render_job.py"
