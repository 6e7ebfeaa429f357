// SPDX-License-Identifier: MPL-2.0

// Command tm composes a working software bundle out of independently
// produced module variants: it resolves one provider per port, validates
// declared requirements, and materializes an output workspace with
// content-addressed incremental copies.
package main

func main() {
	Execute()
}
