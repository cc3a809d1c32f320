package identitystore

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shirady/noobaa-core/pkg/iamerr"
)

// maxConcurrentListReads bounds the number of account files a single list
// scan holds open at once (spec.md §4.5: "bounded concurrency (≤ 10
// in-flight reads)").
const maxConcurrentListReads = 10

// scanAccounts enumerates <accounts>/*.json, skips any entry carrying the
// temp-file marker, reads each with bounded concurrency, and retains those
// for which keep returns true. The first read error aborts the whole scan.
func (s *Store) scanAccounts(ctx context.Context, keep func(*Account) bool) ([]*Account, error) {
	entries, err := os.ReadDir(s.paths.accountsDir())
	if err != nil {
		return nil, iamerr.FromErrno(err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || isTempFile(entry.Name()) {
			continue
		}
		names = append(names, nameFromAccountFile(entry.Name()))
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, maxConcurrentListReads)
		firstErr error
		results  []*Account
	)

	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			account, err := s.configFiles.readAccount(ctx, name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if keep(account) {
				results = append(results, account)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// hasPathPrefix reports whether iamPath begins with prefix. It is a plain
// string-prefix match with no "/" boundary check; "" and "/" match every
// path.
func hasPathPrefix(iamPath, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	return strings.HasPrefix(iamPath, prefix)
}

func sortUserViews(views []UserView) {
	sort.Slice(views, func(i, j int) bool { return views[i].Username < views[j].Username })
}
