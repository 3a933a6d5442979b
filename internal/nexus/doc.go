// SPDX-License-Identifier: MPL-2.0

// Package nexus is a client for the Nexus staging REST API used by Maven
// Central publishing: it starts staging repositories, deploys files into
// them, requests close and promote transitions and reports repository state.
package nexus
