/*
The sync package compares the content the blog app owns (the posts file and
the uploads directory) between the operator's checkout and the host.

Files are keyed by their destination path, which is relative to the remote
path. Local paths are mapped onto destinations by the data rules in the project
config. The remote side is described by a manifest: the output of `sha512sum`
run over the rule destinations on the host.

Only files are compared. Empty directories are ignored.
*/
package sync
