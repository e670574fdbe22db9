package refined

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"bedrock/internal/objstore"
)

const deltaLogDir = "_delta_log/"

// commit is one JSON commit file of a Delta transaction log.
type commit struct {
	version int64
	path    string
}

// listCommits returns the JSON commits under <table>/_delta_log in version order.
func listCommits(ctx context.Context, store objstore.Store, table string) ([]commit, error) {
	paths, err := store.List(ctx, table+deltaLogDir)
	if err != nil {
		return nil, err
	}
	var commits []commit
	for _, p := range paths {
		name := path.Base(p)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		commits = append(commits, commit{version: v, path: p})
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].version < commits[j].version })
	return commits, nil
}

// replayLog applies add/remove actions in version order and returns the live
// data files, relative to the table root, sorted.
// Only uncheckpointed histories are supported: the log must start at version 0
// and have no gaps.
func replayLog(ctx context.Context, store objstore.Store, commits []commit) ([]string, error) {
	live := make(map[string]bool)
	for i, c := range commits {
		if c.version != int64(i) {
			return nil, fmt.Errorf("delta log is missing version %d (checkpointed logs are not supported)", i)
		}
		data, err := store.Get(ctx, c.path)
		if err != nil {
			return nil, fmt.Errorf("read delta commit %s: %w", c.path, err)
		}
		if err := applyCommit(live, data); err != nil {
			return nil, fmt.Errorf("delta commit %d: %w", c.version, err)
		}
	}

	files := make([]string, 0, len(live))
	for f := range live {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// applyCommit applies the JSON-lines actions of one commit to live.
func applyCommit(live map[string]bool, data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			return fmt.Errorf("line %d is not valid json", line)
		}
		action := gjson.ParseBytes(raw)
		if add := action.Get("add.path"); add.Exists() {
			p, err := url.PathUnescape(add.String())
			if err != nil {
				return fmt.Errorf("line %d: add path: %w", line, err)
			}
			live[p] = true
		}
		if remove := action.Get("remove.path"); remove.Exists() {
			p, err := url.PathUnescape(remove.String())
			if err != nil {
				return fmt.Errorf("line %d: remove path: %w", line, err)
			}
			delete(live, p)
		}
	}
	return sc.Err()
}
