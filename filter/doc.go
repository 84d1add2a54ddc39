// Package filter provides stream filters that validate or transform
// configuration files while they are copied.
//
// Both filters wrap an upstream io.ReadCloser and stay inert until they are
// configured. ValidateReader needs a format; TransformReader needs a source
// and a destination format and, when built with RequireMutator, a mutator.
// Setup happens the moment the last piece arrives: the upstream stream is
// drained, parsed, optionally mutated and serialised into memory. Stream
// operations issued earlier fail with ErrConfigurationMissing. A failed
// setup is cached, and every later operation returns the same *StageError.
//
//	r := filter.NewTransformReader(file)
//	r.SetDestination(format.JSON)
//	r.SetSource(format.YAML)
//	io.Copy(os.Stdout, r)
//
// Hosts that copy files attach filters through ContentFilterable with
// Validate, ConvertFormat and Transform, and configure each built filter
// with Apply.
package filter
