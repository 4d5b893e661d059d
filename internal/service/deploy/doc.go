// Package deploy implements the tree preservation and replacement engine.
//
// An update run proceeds in seven strictly ordered phases: discover the
// preservation set, stage the extracted release, relocate preserved paths into
// the staging tree, clear the deployment root, promote staged content, restore
// preserved paths, and clean up. The sequence is not atomic across phases; a
// crash between clearing and restoring leaves the root without its preserved
// paths, which is an accepted limitation of the design.
package deploy
