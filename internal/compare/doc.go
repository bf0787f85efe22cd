// Package compare decides whether two build artifacts are equivalent.
//
// Two checks are made. Config compares the image configuration fields that
// describe runtime behavior (Cmd, Entrypoint, Env, ExposedPorts, WorkingDir);
// everything else in the metadata is ignored and Env is compared without
// regard to order. Trees compares the files each artifact produced under its
// results directory and sorts every difference into missing, extra or
// differing content. Neither check stops at the first difference.
package compare
