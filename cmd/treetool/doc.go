// Command treetool manipulates phonetic context trees and the pdf spaces
// they define: it compiles question sets, shrinks trees by clustering
// their leaves, estimates maps between two trees' pdf spaces and applies
// them to alignments and posteriors.
//
// Archive arguments accept "ark:PATH", a bare path, "-" for stdio and
// "sqlite:PATH". Settings come from phonetree.toml (see the config
// subcommand); explicit flags override the file.
package main
