// Package installset owns the ordered collections of objects a package
// deploys from.
//
// A manager holds either one set (Single) or two (ActiveInactive); the
// topology is fixed at construction. In ActiveInactive mode every
// index-addressed operation must name the targeted set explicitly, while
// in Single mode the set index must be omitted — the two sets of an
// active-inactive package may legitimately bind the same logical object
// to different target devices, so there is no safe default.
package installset
