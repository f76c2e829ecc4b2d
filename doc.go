// Package cabfile reads Microsoft cabinet (.cab) files.
//
// Decoding is done by an engine registered with package fdi.
// The pure Go engine is registered by importing fdi/mscf:
//
//	import (
//		"github.com/pchchv/cabfile"
//		_ "github.com/pchchv/cabfile/fdi/mscf"
//	)
//
//	cab, err := cabfile.Open("setup.cab")
//	if err != nil {
//		return err
//	}
//	defer cab.Close()
//
//	data, err := cab.Read(ctx, "readme.txt")
//
// Every operation is built on Visit, which offers each member once, in cabinet
// order, and lets the caller skip it, copy it to a writer, or stop.
// Cabinets wrapped in another compression format (.cab.gz, .cab.xz, ...)
// are identified and decompressed in memory.
package cabfile
