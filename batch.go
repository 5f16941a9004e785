package border

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
)

// ScanMatch is one image in which a border decoded successfully.
type ScanMatch struct {
	Path  string
	Match *Result

	// Label is the registry label for the identifier, empty when the
	// identifier was never tagged or no registry is attached.
	Label string
}

func isImageFile(file string) bool {
	switch filepath.Ext(file) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

func (b *Border) findImages(ctx context.Context, base string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !isImageFile(file) {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc
}

func (b *Border) imageWorker(ctx context.Context, wg *sync.WaitGroup, in <-chan string, out chan<- ScanMatch) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer wg.Done()
		defer close(errc)
		for file := range in {
			f, err := os.Open(file)
			if err != nil {
				errc <- err
				return
			}

			m, _, err := image.Decode(f)
			f.Close()
			if err != nil {
				// Not every file with an image extension holds
				// a decodable image.
				b.logger.Printf("Skipping \"%s\": %v\n", file, err)
				continue
			}

			result, err := b.DecodeImage(m)
			if err != nil {
				b.logger.Printf("No code in \"%s\": %v\n", file, err)
				continue
			}

			match := ScanMatch{Path: file, Match: result}
			if b.registry != nil {
				label, err := b.registry.Lookup(result.ID)
				if err != nil {
					errc <- err
					return
				}
				match.Label = label
			}

			select {
			case out <- match:
			case <-ctx.Done():
				return
			}
		}
	}()
	return errc
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

const scanWorkers = 10

// Scan walks a directory tree, decodes the border of every image found
// and resolves labels through the registry. Decode attempts are
// independent per image so they run concurrently.
func (b *Border) Scan(path string) ([]ScanMatch, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc := b.findImages(ctx, dir)
	errcList = append(errcList, errc)

	out := make(chan ScanMatch)
	var workers sync.WaitGroup
	workers.Add(scanWorkers)
	for i := 0; i < scanWorkers; i++ {
		errcList = append(errcList, b.imageWorker(ctx, &workers, files, out))
	}

	go func() {
		workers.Wait()
		close(out)
	}()

	done := make(chan error, 1)
	go func() {
		done <- waitForPipeline(errcList...)
	}()

	var matches []ScanMatch
	for m := range out {
		matches = append(matches, m)
	}

	if err := <-done; err != nil {
		return nil, err
	}

	return matches, nil
}
