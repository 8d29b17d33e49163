// Package client provides the `tablehistory` command-line client.
//
// Installation
//
//	go install github.com/rzbill/tablehistory/cmd/tablehistory@latest
//
// # Address configuration
//
// Commands talk gRPC to TH_GRPC (default 127.0.0.1:50051). Setting
// TH_TRANSPORT=http switches to the REST gateway at TH_HTTP (default
// http://127.0.0.1:8080). Every command prints JSON, one object per line.
//
// Usage
//
//	tablehistory tables create --name orders --serializability table
//	tablehistory tables
//
//	tablehistory update --table orders --key o-1 --doc '{"qty":2}' --attribution alice
//	tablehistory update --table orders --key o-1 --delete
//
//	# newest first; --all pages to the end
//	tablehistory history --table orders --limit 50 --all
//	tablehistory history --table orders --filter 'deleted || doc.qty > 1.0'
//	# wait up to 10s for the first write
//	tablehistory history --table orders --limit 50 --wait-ms 10000
//
//	tablehistory doc-history --table orders --key o-1
//
//	# the table as of a point in time
//	tablehistory snapshot --table orders --at 2025-09-20T12:00:00Z --all
//	tablehistory snapshot --table orders --at 1726833600000 --limit 100 --follow-splits
//
//	tablehistory vacuum --table orders --min-ts 1726833600000
//	tablehistory vacuum --table orders --min-ts 1726833600000 --sync
//	tablehistory watermark --table orders
//
// Notes
//
//   - snapshot continuations reuse the currentTs of the first page; the
//     command does this for you with --all.
//   - --follow-splits replaces a page that recommends a split with its two
//     bounded halves.
//   - vacuum schedules background compaction unless --sync is given.
package client
