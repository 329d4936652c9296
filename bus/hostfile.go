// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// HostFile lists the listen address of every rank of a TCP group.
	//
	//	hosts:
	//	  - rank: 0
	//	    addr: 10.0.0.1:7400
	//	  - rank: 1
	//	    addr: 10.0.0.2:7400
	HostFile struct {
		Hosts []HostEntry `yaml:"hosts"`
	}

	HostEntry struct {
		Rank int    `yaml:"rank"`
		Addr string `yaml:"addr"`
	}
)

func LoadHostFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading host file %s", path)
	}
	return ParseHostFile(data)
}

// ParseHostFile returns the addresses ordered by rank. Ranks must be exactly 0..n-1.
func ParseHostFile(data []byte) ([]string, error) {
	var hf HostFile
	if err := yaml.Unmarshal(data, &hf); err != nil {
		return nil, errors.Wrap(err, "parsing host file")
	}
	if len(hf.Hosts) == 0 {
		return nil, errors.New("host file lists no hosts")
	}
	hosts := append([]HostEntry(nil), hf.Hosts...)
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Rank < hosts[j].Rank })
	addrs := make([]string, len(hosts))
	for i, h := range hosts {
		if h.Rank != i {
			return nil, errors.Errorf("host file: ranks must be 0..%d without gaps or duplicates, found rank %d at position %d", len(hosts)-1, h.Rank, i)
		}
		if h.Addr == "" {
			return nil, errors.Errorf("host file: rank %d has no address", h.Rank)
		}
		addrs[i] = h.Addr
	}
	return addrs, nil
}
