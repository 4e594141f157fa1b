// Package thumbnail renders multi-size thumbnails of remote originals.
//
// A Pipeline resolves an original's URL, downloads it once, decodes it
// with EXIF orientation applied, and writes one rendition per configured
// size through a storage.Backend. Sizes fail independently.
//
// Rendition paths come from GetThumbnailPath only:
//
//	photos/2024/beach.jpg, "small", "jpeg" -> photos/2024/beach.jpg_small.jpeg
//
// JPEG and PNG are encoded with imaging. WebP needs libvips; call InitVips
// at startup.
package thumbnail
