/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package includes provides core.Loaders for the "/include"
// directive.
//
//	/include:
//	- https://example.com/greetings.bot
//	- file://local/faq.bot
package includes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/context/ctxhttp"
)

// Provider is a core.Loader function.
type Provider func(ctx context.Context, location string) (string, error)

// Load implements core.Loader.
func (p Provider) Load(ctx context.Context, location string) (string, error) {
	return p(ctx, location)
}

// Files reads locations, which should be relative, from the given
// directory.  A "file://" prefix is optional.
func Files(dir string) Provider {
	return func(ctx context.Context, location string) (string, error) {
		filename := strings.TrimPrefix(location, "file://")
		if !filepath.IsAbs(filename) {
			filename = filepath.Join(dir, filename)
		}
		bs, err := os.ReadFile(filename)
		if err != nil {
			return "", err
		}
		return string(bs), nil
	}
}

// HTTP gets locations with the given client (or the default client
// if nil).
func HTTP(client *http.Client) Provider {
	return func(ctx context.Context, location string) (string, error) {
		resp, err := ctxhttp.Get(ctx, client, location)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			bs, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("include fetch status %s %d",
				resp.Status, resp.StatusCode)
		}
	}
}

// Map serves scripts from memory.
func Map(srcs map[string]string) Provider {
	return func(ctx context.Context, location string) (string, error) {
		src, have := srcs[location]
		if !have {
			return "", fmt.Errorf("undefined include '%s'", location)
		}
		return src, nil
	}
}

// Standard uses HTTP for http and https locations and Files(dir)
// for everything else.
func Standard(dir string) Provider {
	files := Files(dir)
	web := HTTP(nil)
	return func(ctx context.Context, location string) (string, error) {
		parts := strings.SplitN(location, "://", 2)
		if len(parts) == 1 {
			return files(ctx, location)
		}
		switch parts[0] {
		case "file":
			return files(ctx, location)
		case "http", "https":
			return web(ctx, location)
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}
