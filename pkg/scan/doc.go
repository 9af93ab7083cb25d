// Package scan provides a parallel paginator for DynamoDB Scan operations.
//
// DynamoDB splits a scan into TotalSegments disjoint segments that can be read
// independently. ParallelScanPaginator issues one request per segment, follows
// each segment's LastEvaluatedKey, and hands the pages to the caller as a
// single iter.Seq2 in the order they complete.
//
// Example usage:
//
//	paginator := scan.NewParallelScanPaginator(client, &dynamodb.ScanInput{
//		TableName:     aws.String("orders"),
//		TotalSegments: aws.Int32(8),
//	})
//	for page, err := range paginator.Pages(ctx) {
//		if err != nil {
//			return err
//		}
//		process(page.Items)
//	}
//
// The paginator:
//   - Runs one worker per segment (TotalSegments defaults to 1)
//   - Requests a segment's next page only after its previous page arrived
//   - Yields pages in completion order, no ordering across segments
//   - Stops resubmitting as soon as the loop is left, then waits for requests
//     already in flight (or cancels them with CancelOnStop)
//   - Yields a failed request's error unchanged and ends the sequence
//
// Nothing is retried here; retry behaviour belongs to the client.
package scan
