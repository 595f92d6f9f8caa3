// Package outputpath picks non-colliding destination paths for encoded files.
//
// Names follow "{stem}_compressed_{resolution}.{container}" in the override
// directory or next to the source. When the candidate exists, " (n)" is
// appended before the extension, counting from 1. The existence check is not
// atomic with the encoder creating the file; the Resolver remembers paths it
// has handed out until they are released so concurrent submissions within one
// process never share a name. Exclusive mode additionally creates the file
// with O_EXCL to close the race against other writers.
package outputpath
