// Package cli implements the ddexport command line.
//
//	ddexport send      emit a demo trace through the exporter
//	ddexport agent     run a local trace agent that prints what it receives
//	ddexport inject    print propagation headers for a span context
//	ddexport extract   decode propagation headers
//	ddexport version   show version information
package cli
